package delta

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/internal/domain"
)

var _ sessionRepo = &sessionRepoMock{}

type sessionRepoMock struct {
	FindByChecksumsFunc func(ctx context.Context, ownerID uuid.UUID, car, receipt string, excludeID *uuid.UUID) ([]domain.Session, error)

	calls struct {
		FindByChecksums []struct {
			Ctx       context.Context
			OwnerID   uuid.UUID
			Car       string
			Receipt   string
			ExcludeID *uuid.UUID
		}
	}
	lockFindByChecksums sync.RWMutex
}

func (mock *sessionRepoMock) FindByChecksums(ctx context.Context, ownerID uuid.UUID, car, receipt string, excludeID *uuid.UUID) ([]domain.Session, error) {
	if mock.FindByChecksumsFunc == nil {
		panic("sessionRepoMock.FindByChecksumsFunc: method is nil but sessionRepo.FindByChecksums was just called")
	}
	callInfo := struct {
		Ctx       context.Context
		OwnerID   uuid.UUID
		Car       string
		Receipt   string
		ExcludeID *uuid.UUID
	}{Ctx: ctx, OwnerID: ownerID, Car: car, Receipt: receipt, ExcludeID: excludeID}
	mock.lockFindByChecksums.Lock()
	mock.calls.FindByChecksums = append(mock.calls.FindByChecksums, callInfo)
	mock.lockFindByChecksums.Unlock()
	return mock.FindByChecksumsFunc(ctx, ownerID, car, receipt, excludeID)
}

func (mock *sessionRepoMock) FindByChecksumsCalls() []struct {
	Ctx       context.Context
	OwnerID   uuid.UUID
	Car       string
	Receipt   string
	ExcludeID *uuid.UUID
} {
	mock.lockFindByChecksums.RLock()
	calls := mock.calls.FindByChecksums
	mock.lockFindByChecksums.RUnlock()
	return calls
}
