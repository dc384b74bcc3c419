package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	bookingserrors "agendify/internal/bookings/errors"
	"agendify/internal/bookings/policy"
	"agendify/internal/bookings/repository"
	"agendify/internal/bookings/validator"
	"agendify/pkg/auth"
	"agendify/pkg/config"
	apperrors "agendify/pkg/errors"
	"agendify/pkg/kafka"
	"agendify/pkg/model"
	"agendify/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// ProfessionalDirectory answers whether an account ID belongs to a
// professional. Implemented by the accounts service.
type ProfessionalDirectory interface {
	IsProfessional(ctx context.Context, accountID string) (bool, error)
}

// EventPublisher publishes booking lifecycle events. Nil-safe via
// noopPublisher so tests and event-less deployments skip Kafka entirely.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking, holidays []string) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error)
	ListMine(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	OccupiedSlots(ctx context.Context, professionalID string, startTime, endTime *time.Time) ([]*model.OccupiedSlot, error)
	Update(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
	ExportCSV(ctx context.Context) ([][]string, error)
}

type bookingService struct {
	repo          repository.BookingRepository
	lockRepo      repository.BookingLockRepository
	validator     *validator.BookingValidator
	rules         *policy.Rules
	professionals ProfessionalDirectory
	events        EventPublisher
	cfg           *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	validator *validator.BookingValidator,
	rules *policy.Rules,
	professionals ProfessionalDirectory,
	events EventPublisher,
	cfg *config.Config,
) BookingService {
	if events == nil {
		events = noopPublisher{}
	}
	return &bookingService{
		repo:          repo,
		lockRepo:      lockRepo,
		validator:     validator,
		rules:         rules,
		professionals: professionals,
		events:        events,
		cfg:           cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking, holidays []string) error {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperrors.Unauthorized("Authentication required")
	}
	booking.OwnerID = identity.AccountID
	booking.ID = ""

	s.sanitize(booking)
	if err := s.applyDuration(booking); err != nil {
		return err
	}
	booking.EndTime = booking.End()

	if err := s.validate(booking); err != nil {
		return err
	}

	if err := s.verifyProfessional(ctx, booking.ProfessionalID); err != nil {
		return err
	}

	if err := s.checkPolicy(booking, holidays); err != nil {
		return err
	}

	// Advisory per-professional lock closes the check-then-insert race:
	// concurrent requests touching this calendar cannot both pass
	// verifyOverlap, whatever their start times.
	lockID, err := s.acquireCalendarLock(ctx, booking.ProfessionalID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseCalendarLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyOverlap(sessCtx, booking, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return err
	}

	s.publishEvent(ctx, kafka.EventBookingCreated, booking)

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"professional_id", booking.ProfessionalID,
		"owner_id", booking.OwnerID,
		"start_time", booking.StartTime,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	booking, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canAccess(identity, booking) {
		return nil, apperrors.Forbidden("You do not have access to this booking")
	}

	return booking, nil
}

// List is role-scoped: admins see everything, professionals their own
// agenda, clients the bookings they created.
func (s *bookingService) List(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}

	switch identity.Role {
	case model.RoleAdmin:
		return s.listAll(ctx, startTime, endTime, limit, offset)
	case model.RoleProfessional:
		return s.listByProfessional(ctx, identity.AccountID, startTime, endTime, limit, offset)
	default:
		return s.listByOwner(ctx, identity.AccountID, startTime, endTime, limit, offset)
	}
}

func (s *bookingService) ListMine(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	return s.listByOwner(ctx, identity.AccountID, nil, nil, limit, offset)
}

// OccupiedSlots exposes only busy intervals, never who booked them, so any
// authenticated caller may consult a professional's agenda before booking.
func (s *bookingService) OccupiedSlots(ctx context.Context, professionalID string, startTime, endTime *time.Time) ([]*model.OccupiedSlot, error) {
	if professionalID == "" {
		return nil, apperrors.InvalidInput("Professional ID cannot be empty")
	}

	if err := s.verifyProfessional(ctx, professionalID); err != nil {
		return nil, err
	}

	bookings, err := s.repo.FindByProfessional(ctx, professionalID, startTime, endTime, config.DefaultPaginationLimit, 0)
	if err != nil {
		s.cfg.Log.Error("Failed to list occupied slots", "professional_id", professionalID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve occupied slots", err)
	}

	slots := make([]*model.OccupiedSlot, 0, len(bookings))
	for _, b := range bookings {
		slots = append(slots, &model.OccupiedSlot{
			StartTime:   b.StartTime,
			DurationMin: b.DurationMin,
		})
	}
	return slots, nil
}

func (s *bookingService) Update(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	existing, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(identity, existing) {
		return nil, apperrors.Forbidden("You do not have permission to modify this booking")
	}

	if err := s.validator.ValidatePatch(patch); err != nil {
		s.cfg.Log.Warn("Booking patch validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergePatch(existing, patch)
	s.sanitize(merged)
	merged.EndTime = merged.End()
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if !patch.ChangesInterval() {
		err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if _, err := s.repo.Update(sessCtx, id, merged); err != nil {
				return apperrors.Internal("Failed to update booking", err)
			}
			return nil
		})
		if err != nil {
			s.cfg.Log.Error("Failed to update booking", "id", id, "error", err)
			return nil, err
		}
		s.publishEvent(ctx, kafka.EventBookingUpdated, merged)
		s.cfg.Log.Info("Booking updated successfully", "id", id)
		return merged, nil
	}

	// The slot moved: the merged interval must clear the calendar policy
	// and the overlap check again, excluding the booking itself.
	if err := s.checkPolicy(merged, patch.Holidays); err != nil {
		return nil, err
	}

	lockID, err := s.acquireCalendarLock(ctx, merged.ProfessionalID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseCalendarLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyOverlap(sessCtx, merged, id); err != nil {
			return err
		}
		if _, err := s.repo.Update(sessCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update booking", "id", id, "error", err)
		return nil, err
	}

	s.publishEvent(ctx, kafka.EventBookingUpdated, merged)
	s.cfg.Log.Info("Booking updated successfully", "id", id, "start_time", merged.StartTime)
	return merged, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperrors.Unauthorized("Authentication required")
	}

	existing, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(identity, existing) {
		return apperrors.Forbidden("You do not have permission to delete this booking")
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			return apperrors.Internal("Failed to delete booking", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, kafka.EventBookingDeleted, existing)
	s.cfg.Log.Info("Booking deleted successfully", "id", id)
	return nil
}

// ExportCSV flattens every booking into rows for the admin export. The
// header row is always present, even with no bookings.
func (s *bookingService) ExportCSV(ctx context.Context) ([][]string, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if identity.Role != model.RoleAdmin {
		return nil, apperrors.Forbidden("Only administrators can export bookings")
	}

	rows := [][]string{
		{"id", "professional_id", "owner_id", "service_type", "start_time", "duration_min", "client_name", "client_email", "client_whatsapp", "note", "created_at"},
	}

	const pageSize = 500
	var offset int64
	for {
		page, err := s.repo.FindAll(ctx, nil, nil, pageSize, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to export bookings", "offset", offset, "error", err)
			return nil, apperrors.Internal("Failed to export bookings", err)
		}
		for _, b := range page {
			rows = append(rows, []string{
				b.ID,
				b.ProfessionalID,
				b.OwnerID,
				b.ServiceType,
				b.StartTime.Format(time.RFC3339),
				strconv.Itoa(b.DurationMin),
				b.ClientName,
				b.ClientEmail,
				b.ClientWhatsapp,
				b.Note,
				b.CreatedAt.Format(time.RFC3339),
			})
		}
		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	return rows, nil
}

// --- Helpers ---

func (s *bookingService) findByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) listAll(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, startTime, endTime)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, startTime, endTime, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) listByProfessional(ctx context.Context, professionalID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByProfessional(ctx, professionalID, startTime, endTime)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings by professional", "professional_id", professionalID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByProfessional(ctx, professionalID, startTime, endTime, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings by professional", "professional_id", professionalID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) listByOwner(ctx context.Context, ownerID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByOwner(ctx, ownerID, startTime, endTime)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings by owner", "owner_id", ownerID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByOwner(ctx, ownerID, startTime, endTime, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings by owner", "owner_id", ownerID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.ServiceType = sanitizer.NormalizeServiceType(b.ServiceType)
	b.ClientName = sanitizer.NormalizeName(b.ClientName)
	b.ClientEmail = sanitizer.NormalizeEmail(b.ClientEmail)
	b.Note = sanitizer.TrimAndNormalize(b.Note)
	if b.ClientWhatsapp != "" {
		if normalized := sanitizer.NormalizeWhatsapp(b.ClientWhatsapp); normalized != "" {
			b.ClientWhatsapp = normalized
		}
	}
}

// applyDuration fills DurationMin from the configured per-service defaults
// when the request omits it.
func (s *bookingService) applyDuration(b *model.Booking) error {
	if b.DurationMin > 0 {
		return nil
	}

	minutes, ok := s.cfg.ServiceDurations[b.ServiceType]
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf(
			"duration_min is required for service type %q (no default duration configured)", b.ServiceType,
		))
	}
	b.DurationMin = minutes
	return nil
}

func (s *bookingService) mergePatch(existing *model.Booking, patch *model.BookingPatch) *model.Booking {
	merged := *existing

	if patch.ServiceType != nil {
		merged.ServiceType = *patch.ServiceType
	}
	if patch.StartTime != nil {
		merged.StartTime = *patch.StartTime
	}
	if patch.DurationMin != nil {
		merged.DurationMin = *patch.DurationMin
	}
	if patch.ClientName != nil {
		merged.ClientName = *patch.ClientName
	}
	if patch.ClientEmail != nil {
		merged.ClientEmail = *patch.ClientEmail
	}
	if patch.ClientWhatsapp != nil {
		merged.ClientWhatsapp = *patch.ClientWhatsapp
	}
	if patch.Note != nil {
		merged.Note = *patch.Note
	}

	return &merged
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *bookingService) verifyProfessional(ctx context.Context, professionalID string) error {
	isProfessional, err := s.professionals.IsProfessional(ctx, professionalID)
	if err != nil {
		return apperrors.Internal("Failed to verify professional", err)
	}
	if !isProfessional {
		return apperrors.UnknownProfessional(professionalID)
	}
	return nil
}

func (s *bookingService) checkPolicy(booking *model.Booking, holidays []string) error {
	rules := s.rules
	if len(holidays) > 0 {
		extended, err := rules.WithHolidays(holidays)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
		rules = extended
	}

	if violation, ok := rules.Check(booking.StartTime, booking.EndTime); !ok {
		return apperrors.PolicyRejected(violation.Message(), string(violation))
	}
	return nil
}

func (s *bookingService) verifyOverlap(ctx context.Context, booking *model.Booking, excludeID string) error {
	existing, err := s.repo.FindOverlapping(ctx, booking.ProfessionalID, booking.StartTime, booking.EndTime, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	if len(existing) > 0 {
		b := existing[0]
		return apperrors.SlotOccupied(fmt.Sprintf(
			"Requested slot overlaps an existing booking (%s - %s)",
			b.StartTime.Format(time.RFC3339),
			b.EndTime.Format(time.RFC3339),
		))
	}
	return nil
}

const (
	calendarLockTTL        = 10 * time.Second
	calendarLockRetryEvery = 25 * time.Millisecond
	calendarLockWaitLimit  = 2 * time.Second
)

// acquireCalendarLock admits one booking writer per professional at a time.
// The overlap check and the insert run inside a snapshot-isolated
// transaction, so two writers for overlapping intervals could each read a
// free calendar and both commit; serializing writers per professional closes
// that. Contenders retry until the holder releases or the wait limit passes.
func (s *bookingService) acquireCalendarLock(ctx context.Context, professionalID string) (string, error) {
	lockID := fmt.Sprintf("booking_lock_%s", professionalID)
	deadline := time.Now().Add(calendarLockWaitLimit)

	for {
		lock := &model.BookingLock{
			ID:        lockID,
			ExpiresAt: time.Now().Add(calendarLockTTL),
		}

		_, err := s.lockRepo.Create(ctx, lock)
		if err == nil {
			return lockID, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Internal("Failed to acquire booking lock", err)
		}
		if time.Now().After(deadline) {
			return "", apperrors.SlotOccupied("The professional's calendar is busy with another booking request. Please try again.")
		}

		select {
		case <-ctx.Done():
			return "", apperrors.Internal("Failed to acquire booking lock", ctx.Err())
		case <-time.After(calendarLockRetryEvery):
		}
	}
}

func (s *bookingService) releaseCalendarLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *bookingService) publishEvent(ctx context.Context, eventType string, booking *model.Booking) {
	msg := kafka.NewMessage().
		WithKey(booking.ProfessionalID).
		WithValue(booking).
		WithEventType(eventType).
		WithSource("agendify-server").
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		// Events are best-effort; the booking write already committed.
		s.cfg.Log.Warn("Failed to publish booking event", "event_type", eventType, "booking_id", booking.ID, "error", err)
	}
}

func canAccess(identity auth.Identity, b *model.Booking) bool {
	return identity.Role == model.RoleAdmin ||
		b.OwnerID == identity.AccountID ||
		b.ProfessionalID == identity.AccountID
}

// canModify is stricter than canAccess: only the client who made the
// booking may rewrite or cancel it. The booked professional can read it but
// never mutate it. Admins keep an operational override.
func canModify(identity auth.Identity, b *model.Booking) bool {
	return identity.Role == model.RoleAdmin || b.OwnerID == identity.AccountID
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, kafka.Message) error { return nil }
