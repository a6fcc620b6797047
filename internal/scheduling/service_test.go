package scheduling

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncotrack-api/internal/model"
	"oncotrack-api/internal/policy"
	"oncotrack-api/internal/store"
)

// fakeStore is an in-memory stand-in for the pg store. It enforces the
// same slot exclusivity the partial unique index does, so conflict
// paths behave like production.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	doctors  map[string]*model.Doctor
	patients map[string]*model.Patient
	appts    map[string]*model.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*model.User{},
		doctors:  map[string]*model.Doctor{},
		patients: map[string]*model.Patient{},
		appts:    map[string]*model.Appointment{},
	}
}

func (f *fakeStore) UserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) DoctorByID(_ context.Context, id string) (*model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.doctors[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) DoctorByUserID(_ context.Context, userID string) (*model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) PatientByID(_ context.Context, id string) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.patients[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) PatientByUserID(_ context.Context, userID string) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patients {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateAppointment(_ context.Context, a *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Status.Blocking() {
		for _, other := range f.appts {
			if other.DoctorID == a.DoctorID && other.AppointmentDate.Equal(a.AppointmentDate) &&
				other.Status.Blocking() {
				return store.ErrDuplicate
			}
		}
	}
	cp := *a
	f.appts[a.ID] = &cp
	return nil
}

func (f *fakeStore) AppointmentByID(_ context.Context, id string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.appts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) SlotTaken(_ context.Context, doctorID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(at) && a.Status.Blocking() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UpdateAppointment(_ context.Context, a *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appts[a.ID]; !ok {
		return store.ErrNotFound
	}
	if a.Status.Blocking() {
		for _, other := range f.appts {
			if other.ID != a.ID && other.DoctorID == a.DoctorID &&
				other.AppointmentDate.Equal(a.AppointmentDate) && other.Status.Blocking() {
				return store.ErrDuplicate
			}
		}
	}
	cp := *a
	f.appts[a.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateAppointmentStatus(_ context.Context, id string, status model.AppointmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	return nil
}

func (f *fakeStore) AppointmentsByPatient(_ context.Context, patientID string) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (f *fakeStore) AppointmentsByDoctor(_ context.Context, doctorID string, status model.AppointmentStatus) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appts {
		if a.DoctorID == doctorID && (status == "" || a.Status == status) {
			out = append(out, *a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (f *fakeStore) OccupiedSlots(_ context.Context, doctorID string, from, to time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.Status.Blocking() &&
			!a.AppointmentDate.Before(from) && a.AppointmentDate.Before(to) {
			out = append(out, a.AppointmentDate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func sortAppointments(appts []model.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].AppointmentDate.Equal(appts[j].AppointmentDate) {
			return appts[i].AppointmentDate.Before(appts[j].AppointmentDate)
		}
		return appts[i].ID < appts[j].ID
	})
}

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	fs  *fakeStore
	svc *Service

	doctor  policy.Principal
	patient policy.Principal
}

// newFixture seeds one doctor (doc1), one patient assigned to them
// (pat1) and one unassigned patient (pat2).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := newFakeStore()
	fs.users["u-doc"] = &model.User{ID: "u-doc", FirstName: "Greg", LastName: "House", Role: model.RoleDoctor}
	fs.users["u-pat"] = &model.User{ID: "u-pat", FirstName: "Alice", LastName: "Ames", Role: model.RolePatient}
	fs.users["u-pat2"] = &model.User{ID: "u-pat2", FirstName: "Bob", LastName: "Burns", Role: model.RolePatient}
	fs.doctors["doc1"] = &model.Doctor{ID: "doc1", UserID: "u-doc", Specialization: "Oncology"}
	docID := "doc1"
	fs.patients["pat1"] = &model.Patient{ID: "pat1", UserID: "u-pat", AssignedDoctorID: &docID}
	fs.patients["pat2"] = &model.Patient{ID: "pat2", UserID: "u-pat2"}

	svc := New(fs, fs, fs, fs, 10, 18, zerolog.Nop())
	svc.now = func() time.Time { return testNow }

	return &fixture{
		fs:      fs,
		svc:     svc,
		doctor:  policy.Principal{UserID: "u-doc", Role: model.RoleDoctor},
		patient: policy.Principal{UserID: "u-pat", Role: model.RolePatient},
	}
}

func slot(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestRequestCreatesPendingAppointment(t *testing.T) {
	fx := newFixture(t)

	a, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
		slot(10, 14, 0), "Consultation", "first visit")
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, "Dr. Greg House", a.DoctorName)
	assert.Equal(t, "pat1", a.PatientID)
	assert.Equal(t, "doc1", a.DoctorID)
}

func TestRequestRejectsPastTime(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
		slot(1, 8, 0), "Consultation", "")
	assert.ErrorIs(t, err, ErrPastDateTime)

	// exactly now is also rejected
	_, err = fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
		testNow, "Consultation", "")
	assert.ErrorIs(t, err, ErrPastDateTime)
}

func TestRequestRejectsOutsideWindow(t *testing.T) {
	fx := newFixture(t)

	for _, at := range []time.Time{slot(10, 9, 30), slot(10, 18, 0), slot(10, 21, 0)} {
		_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
			at, "Consultation", "")
		assert.ErrorIs(t, err, ErrOutOfWindow, "at %v", at)
	}

	// boundaries: window start is bookable, end is not
	_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
		slot(10, 10, 0), "Consultation", "")
	assert.NoError(t, err)
	_, err = fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
		slot(10, 17, 30), "Consultation", "")
	assert.NoError(t, err)
}

func TestRequestRequiresAssignedDoctor(t *testing.T) {
	fx := newFixture(t)
	fx.fs.doctors["doc2"] = &model.Doctor{ID: "doc2", UserID: "u-doc2"}

	_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc2",
		slot(10, 14, 0), "Consultation", "")
	assert.ErrorIs(t, err, ErrNotAssigned)
}

func TestRequestRequiresType(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1",
		slot(10, 14, 0), "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRequestConflictOnTakenSlot(t *testing.T) {
	fx := newFixture(t)
	at := slot(10, 14, 0)

	_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1", at, "Consultation", "")
	require.NoError(t, err)

	_, err = fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1", at, "Follow-up", "")
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestRejectedAndCancelledFreeTheSlot(t *testing.T) {
	fx := newFixture(t)
	at := slot(10, 14, 0)

	for _, status := range []model.AppointmentStatus{model.StatusRejected, model.StatusCancelled} {
		fx.fs.appts = map[string]*model.Appointment{
			"old": {ID: "old", PatientID: "pat1", DoctorID: "doc1", AppointmentDate: at, Status: status},
		}
		_, err := fx.svc.Request(context.Background(), fx.patient, "pat1", "doc1", at, "Consultation", "")
		assert.NoError(t, err, "status %s should not block", status)
	}
}

func TestRequestRoleAndOwnershipChecks(t *testing.T) {
	fx := newFixture(t)

	// doctors cannot use the request path
	_, err := fx.svc.Request(context.Background(), fx.doctor, "pat1", "doc1",
		slot(10, 14, 0), "Consultation", "")
	assert.ErrorIs(t, err, policy.ErrForbidden)

	// a patient cannot book for someone else's record
	_, err = fx.svc.Request(context.Background(), fx.patient, "pat2", "doc1",
		slot(10, 14, 0), "Consultation", "")
	assert.ErrorIs(t, err, policy.ErrForbidden)
}

func TestCreateIsApprovedImmediately(t *testing.T) {
	fx := newFixture(t)

	a, err := fx.svc.Create(context.Background(), fx.doctor, "pat1", "doc1",
		slot(10, 14, 0), "Chemo Review", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, a.Status)
	assert.Equal(t, "Dr. Greg House", a.DoctorName)
}

func TestCreateHasNoWindowRestriction(t *testing.T) {
	fx := newFixture(t)

	// early morning, and in the past: both fine for the doctor path
	_, err := fx.svc.Create(context.Background(), fx.doctor, "pat1", "doc1",
		slot(10, 7, 0), "Urgent", "")
	assert.NoError(t, err)
	_, err = fx.svc.Create(context.Background(), fx.doctor, "pat1", "doc1",
		time.Date(2025, 2, 1, 14, 0, 0, 0, time.UTC), "Backfill", "")
	assert.NoError(t, err)
}

func TestCreateRequiresOwnPatient(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Create(context.Background(), fx.doctor, "pat2", "doc1",
		slot(10, 14, 0), "Consultation", "")
	assert.ErrorIs(t, err, policy.ErrForbidden)
}

func TestApproveOnlyFromPending(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.Request(ctx, fx.patient, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)

	require.NoError(t, fx.svc.Approve(ctx, fx.doctor, a.ID))
	got, _ := fx.fs.AppointmentByID(ctx, a.ID)
	assert.Equal(t, model.StatusApproved, got.Status)

	// already resolved: a second transition is refused
	assert.ErrorIs(t, fx.svc.Reject(ctx, fx.doctor, a.ID), ErrInvalidTransition)
	assert.ErrorIs(t, fx.svc.Approve(ctx, fx.doctor, a.ID), ErrInvalidTransition)
}

func TestRejectFreesPendingRequest(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	at := slot(10, 14, 0)

	a, err := fx.svc.Request(ctx, fx.patient, "pat1", "doc1", at, "Consultation", "")
	require.NoError(t, err)
	require.NoError(t, fx.svc.Reject(ctx, fx.doctor, a.ID))

	// the slot is bookable again
	_, err = fx.svc.Request(ctx, fx.patient, "pat1", "doc1", at, "Consultation", "")
	assert.NoError(t, err)
}

func TestCancelIsUnconditional(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.Create(ctx, fx.doctor, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)

	require.NoError(t, fx.svc.Cancel(ctx, fx.doctor, a.ID))
	got, _ := fx.fs.AppointmentByID(ctx, a.ID)
	assert.Equal(t, model.StatusCancelled, got.Status)

	// cancelling again still succeeds
	assert.NoError(t, fx.svc.Cancel(ctx, fx.doctor, a.ID))
}

func TestEditOverwritesWithoutTransitionGuard(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.Request(ctx, fx.patient, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)
	require.NoError(t, fx.svc.Reject(ctx, fx.doctor, a.ID))

	// Edit can pull a rejected appointment straight to Completed
	got, err := fx.svc.Edit(ctx, fx.doctor, a.ID, slot(11, 15, 30), "Follow-up", "rebooked", model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Follow-up", got.AppointmentType)
	assert.Equal(t, slot(11, 15, 30), got.AppointmentDate)
}

func TestEditValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.Create(ctx, fx.doctor, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)

	_, err = fx.svc.Edit(ctx, fx.doctor, a.ID, slot(10, 14, 0), "Consultation", "", "Booked")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = fx.svc.Edit(ctx, fx.doctor, a.ID, slot(10, 14, 0), "", "", model.StatusApproved)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = fx.svc.Edit(ctx, fx.doctor, a.ID, time.Time{}, "Consultation", "", model.StatusApproved)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEditIntoOccupiedSlotConflicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, fx.doctor, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)
	b, err := fx.svc.Create(ctx, fx.doctor, "pat1", "doc1", slot(10, 15, 0), "Consultation", "")
	require.NoError(t, err)

	_, err = fx.svc.Edit(ctx, fx.doctor, b.ID, slot(10, 14, 0), "Consultation", "", model.StatusApproved)
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestDoctorActionsRequireOwnership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.Request(ctx, fx.patient, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)

	fx.fs.users["u-doc2"] = &model.User{ID: "u-doc2", FirstName: "Eve", LastName: "Ng", Role: model.RoleDoctor}
	fx.fs.doctors["doc2"] = &model.Doctor{ID: "doc2", UserID: "u-doc2"}
	other := policy.Principal{UserID: "u-doc2", Role: model.RoleDoctor}

	assert.ErrorIs(t, fx.svc.Approve(ctx, other, a.ID), policy.ErrForbidden)
	assert.ErrorIs(t, fx.svc.Cancel(ctx, other, a.ID), policy.ErrForbidden)
	_, err = fx.svc.Edit(ctx, other, a.ID, slot(10, 15, 0), "Consultation", "", model.StatusApproved)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	// patients cannot drive transitions at all
	assert.ErrorIs(t, fx.svc.Approve(ctx, fx.patient, a.ID), policy.ErrForbidden)
}

func TestAvailableSlots(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	day := slot(10, 0, 0)

	slots, err := fx.svc.AvailableSlots(ctx, "doc1", day)
	require.NoError(t, err)
	// 8 bookable hours, two slots each
	require.Len(t, slots, 16)
	assert.Equal(t, slot(10, 10, 0), slots[0])
	assert.Equal(t, slot(10, 17, 30), slots[15])

	_, err = fx.svc.Request(ctx, fx.patient, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)

	slots, err = fx.svc.AvailableSlots(ctx, "doc1", day)
	require.NoError(t, err)
	assert.Len(t, slots, 15)
	assert.NotContains(t, slots, slot(10, 14, 0))
}

func TestAvailableSlotsUnknownDoctor(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.AvailableSlots(context.Background(), "nope", slot(10, 0, 0))
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestForPatientScoping(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Request(ctx, fx.patient, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)

	// assigned doctor sees them
	appts, err := fx.svc.ForPatient(ctx, fx.doctor, "pat1")
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	// an unrelated doctor does not
	fx.fs.doctors["doc2"] = &model.Doctor{ID: "doc2", UserID: "u-doc2"}
	_, err = fx.svc.ForPatient(ctx, policy.Principal{UserID: "u-doc2", Role: model.RoleDoctor}, "pat1")
	assert.ErrorIs(t, err, policy.ErrForbidden)

	// nor another patient
	_, err = fx.svc.ForPatient(ctx, policy.Principal{UserID: "u-pat2", Role: model.RolePatient}, "pat1")
	assert.ErrorIs(t, err, policy.ErrForbidden)
}

func TestPendingAndApprovedForDoctor(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	p, err := fx.svc.Request(ctx, fx.patient, "pat1", "doc1", slot(10, 14, 0), "Consultation", "")
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, fx.doctor, "pat1", "doc1", slot(10, 15, 0), "Review", "")
	require.NoError(t, err)

	pending, err := fx.svc.PendingForDoctor(ctx, fx.doctor)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, p.ID, pending[0].ID)

	approved, err := fx.svc.ApprovedForDoctor(ctx, fx.doctor)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	_, err = fx.svc.PendingForDoctor(ctx, fx.patient)
	assert.ErrorIs(t, err, policy.ErrForbidden)
}
