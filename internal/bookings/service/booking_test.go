package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookingserrors "agendify/internal/bookings/errors"
	"agendify/internal/bookings/policy"
	"agendify/internal/bookings/validator"
	"agendify/pkg/auth"
	"agendify/pkg/config"
	mongotx "agendify/pkg/db/mongo"
	apperrors "agendify/pkg/errors"
	"agendify/pkg/logger"
	"agendify/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	testClientID       = "65f1a2b3c4d5e6f7a8b9c0d1"
	testProfessionalID = "65f1a2b3c4d5e6f7a8b9c0d2"
	testAdminID        = "65f1a2b3c4d5e6f7a8b9c0d3"
	testBookingID      = "65f1a2b3c4d5e6f7a8b9c0e1"
)

// memoryBookingRepository keeps bookings in a slice and answers
// FindOverlapping with the same strict half-open comparison the store
// filter uses. txDelay widens each transaction so concurrency tests can
// observe whether two writers ever run their read-then-write sections at
// the same time.
type memoryBookingRepository struct {
	mu       sync.Mutex
	bookings []*model.Booking
	nextID   int

	txDelay       time.Duration
	txActive      int32
	txInterleaved int32
}

func (m *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.ID == "" {
		m.nextID++
		booking.ID = fmt.Sprintf("65f1a2b3c4d5e6f7a8b9%04x", m.nextID)
	}
	booking.CreatedAt = time.Now()
	clone := *booking
	m.bookings = append(m.bookings, &clone)
	return nil
}

func (m *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			clone := *b
			return &clone, nil
		}
	}
	return nil, errNotFoundSentinel
}

// inWindow mirrors the store's half-open window filter: a booking matches
// when its interval intersects [startTime, endTime).
func inWindow(b *model.Booking, startTime, endTime *time.Time) bool {
	if startTime != nil && !b.EndTime.After(*startTime) {
		return false
	}
	if endTime != nil && !b.StartTime.Before(*endTime) {
		return false
	}
	return true
}

func (m *memoryBookingRepository) FindAll(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*model.Booking
	for _, b := range m.bookings {
		if inWindow(b, startTime, endTime) {
			clone := *b
			matched = append(matched, &clone)
		}
	}
	if offset >= int64(len(matched)) {
		return nil, nil
	}
	end := min(int(offset)+limit, len(matched))
	return matched[offset:end], nil
}

func (m *memoryBookingRepository) Count(ctx context.Context, startTime, endTime *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, b := range m.bookings {
		if inWindow(b, startTime, endTime) {
			count++
		}
	}
	return count, nil
}

func (m *memoryBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bookings {
		if b.ID == id {
			clone := *booking
			clone.ID = id
			m.bookings[i] = &clone
			return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	return nil, errNotFoundSentinel
}

func (m *memoryBookingRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bookings {
		if b.ID == id {
			m.bookings = append(m.bookings[:i], m.bookings[i+1:]...)
			return nil
		}
	}
	return errNotFoundSentinel
}

func (m *memoryBookingRepository) FindOverlapping(ctx context.Context, professionalID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.ProfessionalID != professionalID || b.ID == excludeID {
			continue
		}
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryBookingRepository) FindByProfessional(ctx context.Context, professionalID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.ProfessionalID != professionalID || !inWindow(b, startTime, endTime) {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memoryBookingRepository) CountByProfessional(ctx context.Context, professionalID string, startTime, endTime *time.Time) (int64, error) {
	found, _ := m.FindByProfessional(ctx, professionalID, startTime, endTime, 0, 0)
	return int64(len(found)), nil
}

func (m *memoryBookingRepository) FindByOwner(ctx context.Context, ownerID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.OwnerID == ownerID && inWindow(b, startTime, endTime) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryBookingRepository) CountByOwner(ctx context.Context, ownerID string, startTime, endTime *time.Time) (int64, error) {
	found, _ := m.FindByOwner(ctx, ownerID, startTime, endTime, 0, 0)
	return int64(len(found)), nil
}

func (m *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if atomic.AddInt32(&m.txActive, 1) > 1 {
		atomic.StoreInt32(&m.txInterleaved, 1)
	}
	defer atomic.AddInt32(&m.txActive, -1)
	if m.txDelay > 0 {
		time.Sleep(m.txDelay)
	}
	return fn(nil)
}

var errNotFoundSentinel = bookingserrors.ErrNotFound

// memoryLockRepository reproduces the unique-_id insert semantics the
// advisory lock depends on.
type memoryLockRepository struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

func newMemoryLockRepository() *memoryLockRepository {
	return &memoryLockRepository{locks: make(map[string]struct{})}
}

func (m *memoryLockRepository) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.locks[lock.ID]; exists {
		return nil, mongo.CommandError{Code: 11000, Message: "duplicate key error"}
	}
	m.locks[lock.ID] = struct{}{}
	return lock, nil
}

func (m *memoryLockRepository) Delete(ctx context.Context, lockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockID)
	return nil
}

type stubDirectory struct {
	professionals map[string]bool
}

func (d *stubDirectory) IsProfessional(ctx context.Context, accountID string) (bool, error) {
	return d.professionals[accountID], nil
}

func testService(t *testing.T) (BookingService, *memoryBookingRepository) {
	t.Helper()

	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		Log:          log,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		ServiceDurations: map[string]int{
			"consulta": 60,
			"retorno":  30,
		},
	}

	rules, err := policy.NewRules(8, 18, []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}, []string{"2027-12-24"})
	require.NoError(t, err)

	repo := &memoryBookingRepository{}
	svc := NewBookingService(
		repo,
		newMemoryLockRepository(),
		validator.NewBookingValidator(log),
		rules,
		&stubDirectory{professionals: map[string]bool{testProfessionalID: true}},
		nil,
		cfg,
	)
	return svc, repo
}

func clientCtx() context.Context {
	return auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: testClientID,
		Role:      model.RoleClient,
	})
}

func adminCtx() context.Context {
	return auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: testAdminID,
		Role:      model.RoleAdmin,
	})
}

func validBooking(start time.Time) *model.Booking {
	return &model.Booking{
		ProfessionalID: testProfessionalID,
		ServiceType:    "Consulta",
		StartTime:      start,
		DurationMin:    60,
		ClientName:     "Ana Souza",
		ClientEmail:    "ana@example.com",
	}
}

// Monday 2027-06-07 10:00 UTC, a working day well inside working hours.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2027, 6, 7, hour, minute, 0, 0, time.UTC)
}

func TestCreate_Success(t *testing.T) {
	svc, repo := testService(t)

	b := validBooking(mondayAt(10, 0))
	err := svc.Create(clientCtx(), b, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, testClientID, b.OwnerID)
	assert.Equal(t, "consulta", b.ServiceType, "service type should be normalized")
	assert.Equal(t, mondayAt(11, 0), b.EndTime)

	count, _ := repo.Count(context.Background(), nil, nil)
	assert.Equal(t, int64(1), count)
}

func TestCreate_DefaultDurationFromServiceType(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	b.ServiceType = "Retorno"
	b.DurationMin = 0

	err := svc.Create(clientCtx(), b, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, b.DurationMin)
}

func TestCreate_UnknownServiceTypeWithoutDuration(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	b.ServiceType = "massagem"
	b.DurationMin = 0

	err := svc.Create(clientCtx(), b, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestCreate_UnknownProfessional(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	b.ProfessionalID = testClientID // a client, not a professional

	err := svc.Create(clientCtx(), b, nil)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeUnknownProfessional, appErr.Code)
	assert.Equal(t, 400, appErr.StatusCode())
}

func TestCreate_OverlapRejected(t *testing.T) {
	svc, _ := testService(t)

	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), nil))

	cases := []struct {
		name  string
		start time.Time
	}{
		{"identical slot", mondayAt(10, 0)},
		{"starts inside", mondayAt(10, 30)},
		{"ends inside", mondayAt(9, 30)},
		{"contains existing", mondayAt(9, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBooking(tc.start)
			if tc.name == "contains existing" {
				b.DurationMin = 180
			}
			err := svc.Create(clientCtx(), b, nil)
			require.Error(t, err)

			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodeSlotOccupied, appErr.Code)
			assert.Equal(t, 409, appErr.StatusCode())
		})
	}
}

func TestCreate_AbuttingSlotsAllowed(t *testing.T) {
	svc, _ := testService(t)

	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), nil))

	// [11:00, 12:00) abuts [10:00, 11:00) and must not conflict.
	after := validBooking(mondayAt(11, 0))
	assert.NoError(t, svc.Create(clientCtx(), after, nil))

	// [09:00, 10:00) abuts from below.
	before := validBooking(mondayAt(9, 0))
	assert.NoError(t, svc.Create(clientCtx(), before, nil))
}

func TestCreate_SameSlotDifferentProfessionals(t *testing.T) {
	svc, _ := testService(t)

	// Same interval is fine when professionals differ; conflicts are scoped
	// per professional.
	other := "65f1a2b3c4d5e6f7a8b9c0f9"
	svc.(*bookingService).professionals = &stubDirectory{professionals: map[string]bool{
		testProfessionalID: true,
		other:              true,
	}}

	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), nil))

	b := validBooking(mondayAt(10, 0))
	b.ProfessionalID = other
	assert.NoError(t, svc.Create(clientCtx(), b, nil))
}

func TestCreate_PolicyRejections(t *testing.T) {
	svc, _ := testService(t)

	cases := []struct {
		name   string
		start  time.Time
		reason string
	}{
		{"saturday", time.Date(2027, 6, 12, 10, 0, 0, 0, time.UTC), string(policy.ViolationWeekend)},
		// 2027-12-24 is a Friday, so only the holiday rule can reject it.
		{"holiday", time.Date(2027, 12, 24, 10, 0, 0, 0, time.UTC), string(policy.ViolationHoliday)},
		{"before opening", mondayAt(7, 0), string(policy.ViolationOutsideWorkingHours)},
		{"past closing", mondayAt(17, 30), string(policy.ViolationOutsideWorkingHours)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Create(clientCtx(), validBooking(tc.start), nil)
			require.Error(t, err)

			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodePolicyRejected, appErr.Code)
			assert.Equal(t, 400, appErr.StatusCode())
			assert.Equal(t, tc.reason, appErr.Details["reason"])
		})
	}
}

func TestCreate_CallerSuppliedHoliday(t *testing.T) {
	svc, _ := testService(t)

	err := svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), []string{"2027-06-07"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePolicyRejected, apperrors.AsAppError(err).Code)
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	svc, repo := testService(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), nil)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperrors.CodeSlotOccupied, apperrors.AsAppError(err).Code)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent create may win the slot")

	count, _ := repo.Count(context.Background(), nil, nil)
	assert.Equal(t, int64(1), count)
}

// Two concurrent creates whose intervals overlap but start at different
// times contend for the same per-professional lock; only one may commit.
func TestCreate_ConcurrentOverlappingDistinctStarts(t *testing.T) {
	svc, repo := testService(t)
	repo.txDelay = 20 * time.Millisecond

	starts := []time.Time{mondayAt(10, 0), mondayAt(10, 30)}
	errs := make([]error, len(starts))
	var wg sync.WaitGroup

	for i, start := range starts {
		wg.Add(1)
		go func(i int, start time.Time) {
			defer wg.Done()
			errs[i] = svc.Create(clientCtx(), validBooking(start), nil)
		}(i, start)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperrors.CodeSlotOccupied, apperrors.AsAppError(err).Code)
		}
	}
	assert.Equal(t, 1, succeeded, "overlapping intervals at distinct starts must not both commit")
	assert.Zero(t, atomic.LoadInt32(&repo.txInterleaved),
		"booking transactions for one professional must not interleave")

	count, _ := repo.Count(context.Background(), nil, nil)
	assert.Equal(t, int64(1), count)
}

// Disjoint slots contend for the calendar lock too, but the loser waits and
// retries instead of failing, so both bookings land.
func TestCreate_ConcurrentDisjointSlotsBothSucceed(t *testing.T) {
	svc, repo := testService(t)
	repo.txDelay = 20 * time.Millisecond

	starts := []time.Time{mondayAt(10, 0), mondayAt(14, 0)}
	errs := make([]error, len(starts))
	var wg sync.WaitGroup

	for i, start := range starts {
		wg.Add(1)
		go func(i int, start time.Time) {
			defer wg.Done()
			errs[i] = svc.Create(clientCtx(), validBooking(start), nil)
		}(i, start)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	count, _ := repo.Count(context.Background(), nil, nil)
	assert.Equal(t, int64(2), count)
}

func TestUpdate_PartialPatchPreservesFields(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	b.Note = "first visit"
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	newName := "Maria Lima"
	updated, err := svc.Update(clientCtx(), b.ID, &model.BookingPatch{
		ClientName: &newName,
	})
	require.NoError(t, err)

	assert.Equal(t, "Maria Lima", updated.ClientName)
	assert.Equal(t, "first visit", updated.Note, "unpatched fields survive")
	assert.Equal(t, mondayAt(10, 0), updated.StartTime)
	assert.Equal(t, "consulta", updated.ServiceType)
}

func TestUpdate_MoveExcludesSelfFromOverlapCheck(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	// Shifting within its own interval must not collide with itself.
	newStart := mondayAt(10, 30)
	updated, err := svc.Update(clientCtx(), b.ID, &model.BookingPatch{
		StartTime: &newStart,
	})
	require.NoError(t, err)
	assert.Equal(t, newStart, updated.StartTime)
	assert.Equal(t, mondayAt(11, 30), updated.EndTime)
}

func TestUpdate_MoveIntoOccupiedSlotRejected(t *testing.T) {
	svc, _ := testService(t)

	first := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), first, nil))
	second := validBooking(mondayAt(14, 0))
	require.NoError(t, svc.Create(clientCtx(), second, nil))

	newStart := mondayAt(10, 30)
	_, err := svc.Update(clientCtx(), second.ID, &model.BookingPatch{
		StartTime: &newStart,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSlotOccupied, apperrors.AsAppError(err).Code)
}

func TestUpdate_MoveReChecksPolicy(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	sunday := time.Date(2027, 6, 13, 10, 0, 0, 0, time.UTC)
	_, err := svc.Update(clientCtx(), b.ID, &model.BookingPatch{
		StartTime: &sunday,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePolicyRejected, apperrors.AsAppError(err).Code)
}

func TestUpdate_ForbiddenForStranger(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	stranger := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: "65f1a2b3c4d5e6f7a8b9c0ff",
		Role:      model.RoleClient,
	})
	note := "hijacked"
	_, err := svc.Update(stranger, b.ID, &model.BookingPatch{Note: &note})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)
}

func TestDelete_OwnerAndAdmin(t *testing.T) {
	svc, repo := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	stranger := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: "65f1a2b3c4d5e6f7a8b9c0ff",
		Role:      model.RoleClient,
	})
	err := svc.Delete(stranger, b.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)

	require.NoError(t, svc.Delete(adminCtx(), b.ID))
	count, _ := repo.Count(context.Background(), nil, nil)
	assert.Equal(t, int64(0), count)
}

// The booked professional may read a booking but only the owning client (or
// an admin) may rewrite or cancel it.
func TestProfessionalCannotModifyClientBooking(t *testing.T) {
	svc, repo := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	profCtx := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: testProfessionalID,
		Role:      model.RoleProfessional,
	})

	note := "rescheduled by the clinic"
	_, err := svc.Update(profCtx, b.ID, &model.BookingPatch{Note: &note})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)

	err = svc.Delete(profCtx, b.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)

	count, _ := repo.Count(context.Background(), nil, nil)
	assert.Equal(t, int64(1), count, "the booking must survive untouched")
}

func TestList_RoleScoped(t *testing.T) {
	svc, _ := testService(t)

	mine := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), mine, nil))

	otherClient := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: "65f1a2b3c4d5e6f7a8b9c0ee",
		Role:      model.RoleClient,
	})
	theirs := validBooking(mondayAt(14, 0))
	require.NoError(t, svc.Create(otherClient, theirs, nil))

	// Client sees only their own bookings.
	bookings, total, err := svc.List(clientCtx(), nil, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, bookings, 1)
	assert.Equal(t, mine.ID, bookings[0].ID)

	// Professional sees their whole agenda.
	profCtx := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: testProfessionalID,
		Role:      model.RoleProfessional,
	})
	_, total, err = svc.List(profCtx, nil, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// Admin sees everything.
	_, total, err = svc.List(adminCtx(), nil, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestList_WindowBoundsAppliedForEveryRole(t *testing.T) {
	svc, _ := testService(t)

	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(9, 0)), nil))
	late := validBooking(mondayAt(15, 0))
	require.NoError(t, svc.Create(clientCtx(), late, nil))

	from := mondayAt(13, 0)
	to := mondayAt(18, 0)

	cases := []struct {
		name string
		ctx  context.Context
	}{
		{"admin", adminCtx()},
		{"client", clientCtx()},
		{"professional", auth.ContextWithIdentity(context.Background(), auth.Identity{
			AccountID: testProfessionalID,
			Role:      model.RoleProfessional,
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bookings, total, err := svc.List(tc.ctx, &from, &to, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, bookings, 1)
			assert.Equal(t, late.ID, bookings[0].ID)
		})
	}
}

func TestOccupiedSlots_RedactsClientData(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	slots, err := svc.OccupiedSlots(clientCtx(), testProfessionalID, nil, nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, mondayAt(10, 0), slots[0].StartTime)
	assert.Equal(t, 60, slots[0].DurationMin)
}

func TestOccupiedSlots_WindowFilter(t *testing.T) {
	svc, _ := testService(t)

	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), nil))
	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(15, 0)), nil))

	from := mondayAt(13, 0)
	to := mondayAt(18, 0)
	slots, err := svc.OccupiedSlots(clientCtx(), testProfessionalID, &from, &to)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, mondayAt(15, 0), slots[0].StartTime)
}

func TestExportCSV_AdminOnly(t *testing.T) {
	svc, _ := testService(t)

	require.NoError(t, svc.Create(clientCtx(), validBooking(mondayAt(10, 0)), nil))

	_, err := svc.ExportCSV(clientCtx())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)

	rows, err := svc.ExportCSV(adminCtx())
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one booking")
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "consulta", rows[1][3])
}

func TestGetByID_AccessControl(t *testing.T) {
	svc, _ := testService(t)

	b := validBooking(mondayAt(10, 0))
	require.NoError(t, svc.Create(clientCtx(), b, nil))

	// Owner can read.
	got, err := svc.GetByID(clientCtx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	// The booked professional can read.
	profCtx := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: testProfessionalID,
		Role:      model.RoleProfessional,
	})
	_, err = svc.GetByID(profCtx, b.ID)
	require.NoError(t, err)

	// A stranger cannot.
	stranger := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: "65f1a2b3c4d5e6f7a8b9c0ff",
		Role:      model.RoleClient,
	})
	_, err = svc.GetByID(stranger, b.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)
}
