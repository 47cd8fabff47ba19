package booking

import (
	"context"
	"sync"
	"time"

	"github.com/stagebook/backend/internal/model"
)

// fakeStore is an in-memory Store honouring the same conditional
// semantics as the SQL implementation: every guarded mutation reports
// false when its precondition does not hold, and WithTx rolls all
// changes back when the callback errors.  A single mutex stands in for
// the row lock that serialises admissions in MySQL.
type fakeStore struct {
	mu           sync.Mutex
	units        map[uint64]*Unit
	reservations map[uint64]*model.Reservation
	nextID       uint64

	// failure injection
	failGet  map[uint64]error
	failList error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		units:        make(map[uint64]*Unit),
		reservations: make(map[uint64]*model.Reservation),
		nextID:       1,
		failGet:      make(map[uint64]error),
	}
}

func (f *fakeStore) addUnit(u Unit) {
	f.units[u.ID] = &u
}

func (f *fakeStore) unitFor(r *model.Reservation) uint64 {
	if r.TimeSlotID != nil {
		return *r.TimeSlotID
	}
	return r.ScheduleID
}

// WithTx holds the lock for the whole callback and restores a snapshot
// on error, which models both the serialisation and the rollback the
// real store gets from the database.
func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unitSnap := make(map[uint64]Unit, len(f.units))
	for id, u := range f.units {
		unitSnap[id] = *u
	}
	resSnap := make(map[uint64]model.Reservation, len(f.reservations))
	for id, r := range f.reservations {
		resSnap[id] = *r
	}
	nextSnap := f.nextID

	if err := fn(ctx); err != nil {
		f.units = make(map[uint64]*Unit, len(unitSnap))
		for id := range unitSnap {
			u := unitSnap[id]
			f.units[id] = &u
		}
		f.reservations = make(map[uint64]*model.Reservation, len(resSnap))
		for id := range resSnap {
			r := resSnap[id]
			f.reservations[id] = &r
		}
		f.nextID = nextSnap
		return err
	}
	return nil
}

func (f *fakeStore) GetUnit(ctx context.Context, unitID uint64) (Unit, error) {
	u, ok := f.units[unitID]
	if !ok {
		return Unit{}, ErrUnitNotFound
	}
	return *u, nil
}

func (f *fakeStore) GetUnitForReservation(ctx context.Context, r *model.Reservation) (Unit, error) {
	return f.GetUnit(ctx, f.unitFor(r))
}

func (f *fakeStore) ReserveSlot(ctx context.Context, unitID uint64) (bool, error) {
	u, ok := f.units[unitID]
	if !ok {
		return false, ErrUnitNotFound
	}
	if u.Reserved >= u.Capacity {
		return false, nil
	}
	u.Reserved++
	return true, nil
}

func (f *fakeStore) ReleaseSlot(ctx context.Context, r *model.Reservation) error {
	u, ok := f.units[f.unitFor(r)]
	if !ok {
		return ErrUnitNotFound
	}
	if u.Reserved > 0 {
		u.Reserved--
	}
	return nil
}

func (f *fakeStore) InsertReservationGuarded(ctx context.Context, r *model.Reservation) (bool, error) {
	for _, existing := range f.reservations {
		if existing.UserID == r.UserID &&
			f.unitFor(existing) == f.unitFor(r) &&
			existing.ReservationStatus != model.ReservationCancelled {
			return false, nil
		}
	}
	r.ID = f.nextID
	f.nextID++
	cp := *r
	f.reservations[r.ID] = &cp
	return true, nil
}

func (f *fakeStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	if err := f.failGet[id]; err != nil {
		return nil, err
	}
	r, ok := f.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetReservationByQR(ctx context.Context, token string) (*model.Reservation, error) {
	for _, r := range f.reservations {
		if r.QRToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ConfirmPending(ctx context.Context, id uint64) (bool, error) {
	r, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	if r.PaymentStatus != model.PaymentPending || r.ReservationStatus != model.ReservationPending {
		return false, nil
	}
	r.PaymentStatus = model.PaymentCompleted
	r.ReservationStatus = model.ReservationConfirmed
	return true, nil
}

func (f *fakeStore) CancelActive(ctx context.Context, id uint64) (bool, error) {
	r, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	if r.ReservationStatus != model.ReservationPending && r.ReservationStatus != model.ReservationConfirmed {
		return false, nil
	}
	r.PaymentStatus = model.PaymentCancelled
	r.ReservationStatus = model.ReservationCancelled
	return true, nil
}

func (f *fakeStore) CancelPendingUnpaid(ctx context.Context, id uint64) (bool, error) {
	r, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	if r.PaymentStatus != model.PaymentPending || r.ReservationStatus != model.ReservationPending {
		return false, nil
	}
	r.PaymentStatus = model.PaymentCancelled
	r.ReservationStatus = model.ReservationCancelled
	return true, nil
}

func (f *fakeStore) MarkEntered(ctx context.Context, id uint64, at time.Time) (bool, error) {
	r, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	if r.Entered || r.ReservationStatus != model.ReservationConfirmed {
		return false, nil
	}
	r.Entered = true
	t := at
	r.EnteredAt = &t
	r.ReservationStatus = model.ReservationUsed
	return true, nil
}

func (f *fakeStore) ListExpiredPendingIDs(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, r := range f.reservations {
		if r.PaymentStatus == model.PaymentPending &&
			r.ReservationStatus == model.ReservationPending &&
			r.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// snapshot helpers for assertions

func (f *fakeStore) unit(id uint64) Unit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.units[id]
}

func (f *fakeStore) reservation(id uint64) model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reservations[id]
}
