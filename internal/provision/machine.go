package provision

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"medchat/internal/api"
)

// State represents where the provisioning flow currently is.
type State int

const (
	// StateIdle means provisioning has not started.
	StateIdle State = iota
	// StateProbing means existing patients are being listed.
	StateProbing
	// StateCreating means no patient existed and one is being created.
	StateCreating
	// StateFound means a patient was selected or created.
	StateFound
	// StateFailed means provisioning failed; see Failure.
	StateFailed
	// StateStable means the selected patient has been published.
	StateStable
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateCreating:
		return "creating"
	case StateFound:
		return "found"
	case StateFailed:
		return "failed"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

// Failure is a user-facing provisioning failure.
type Failure struct {
	// Message is shown to the user.
	Message string
	// Recoverable distinguishes "show retry" from "fatal".
	Recoverable bool
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return f.Message
}

// Identity carries the profile attributes default patient details are
// derived from.
type Identity struct {
	Email    string
	FullName string
}

// PatientAPI is the slice of the REST client provisioning consumes.
type PatientAPI interface {
	ListPatients(ctx context.Context) ([]api.Patient, error)
	CreatePatient(ctx context.Context, req api.CreatePatientRequest) (*api.Patient, error)
}

// defaultLastName fills the last-name slot when neither the display
// name nor the email yields one.
const defaultLastName = "User"

// Machine ensures the signed-in identity has an associated patient,
// selecting an existing one or creating a default.
//
// Each Ensure call is one attempt, tagged with a generation. Starting a
// new attempt marks every prior one stale: a stale attempt's network
// results are discarded on arrival instead of applied, so a slow
// "create patient" response can never overwrite a fresher outcome. The
// published patient and failure always belong to the latest generation.
type Machine struct {
	mu sync.Mutex

	api     PatientAPI
	timeout time.Duration
	logger  *slog.Logger

	state      State
	generation int
	// settled marks the current generation's outcome as published.
	// Once set, late results from the same generation are discarded
	// just like results from older generations.
	settled bool
	patient *api.Patient
	failure *Failure
}

// MachineConfig configures the provisioning machine.
type MachineConfig struct {
	// Timeout bounds one attempt end to end. Once elapsed the attempt
	// fails with a "taking too long" message even if the underlying
	// calls are still pending.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewMachine creates a provisioning machine over the given API.
func NewMachine(patientAPI PatientAPI, cfg MachineConfig) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		api:     patientAPI,
		timeout: cfg.Timeout,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Patient returns the published patient, or nil before StateStable.
func (m *Machine) Patient() *api.Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patient
}

// Failure returns the published failure, or nil.
func (m *Machine) Failure() *Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Ensure runs one provisioning attempt and returns the selected
// patient, or a *Failure. If a newer attempt starts while this one is
// in flight, this one's result is discarded and ErrSuperseded returned.
func (m *Machine) Ensure(ctx context.Context, identity Identity) (*api.Patient, error) {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.settled = false
	m.state = StateProbing
	m.failure = nil
	m.mu.Unlock()

	m.logger.Debug("Provisioning attempt started",
		"generation", gen,
		"email", identity.Email)

	attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type outcome struct {
		patient *api.Patient
		failure *Failure
	}
	resultCh := make(chan outcome, 1)

	go func() {
		patient, failure := m.run(attemptCtx, gen, identity)
		resultCh <- outcome{patient: patient, failure: failure}
	}()

	select {
	case result := <-resultCh:
		return m.publish(gen, result.patient, result.failure)

	case <-attemptCtx.Done():
		// The hard timeout (or a caller cancellation) fires even while
		// the underlying calls are still pending; the late result is
		// discarded by the generation check inside run.
		if ctx.Err() != nil {
			return m.publish(gen, nil, &Failure{
				Message:     "Setup was cancelled.",
				Recoverable: true,
			})
		}
		return m.publish(gen, nil, &Failure{
			Message:     "Setting up your profile is taking too long. Please try again.",
			Recoverable: true,
		})
	}
}

// run performs the probe/create sequence for one generation.
func (m *Machine) run(ctx context.Context, gen int, identity Identity) (*api.Patient, *Failure) {
	patients, err := m.api.ListPatients(ctx)
	if !m.isCurrent(gen) {
		return nil, nil
	}
	if err != nil {
		m.logger.Warn("Patient listing failed",
			"generation", gen,
			"error", err)
		return nil, &Failure{
			Message:     "Couldn't load your profile: " + api.UserMessage(err, true),
			Recoverable: !api.IsAuthError(err),
		}
	}

	if len(patients) > 0 {
		m.setState(gen, StateFound)
		return &patients[0], nil
	}

	m.setState(gen, StateCreating)

	firstName, lastName := deriveName(identity)
	created, err := m.api.CreatePatient(ctx, api.CreatePatientRequest{
		FirstName: firstName,
		LastName:  lastName,
	})
	if !m.isCurrent(gen) {
		return nil, nil
	}
	if err != nil {
		m.logger.Warn("Patient creation failed",
			"generation", gen,
			"error", err)
		return nil, &Failure{
			Message:     "Couldn't create your profile: " + api.UserMessage(err, true),
			Recoverable: !api.IsAuthError(err),
		}
	}

	m.setState(gen, StateFound)
	return created, nil
}

// publish applies an attempt's outcome to shared state, unless a newer
// attempt has started in the meantime.
func (m *Machine) publish(gen int, patient *api.Patient, failure *Failure) (*api.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.settled {
		m.logger.Debug("Discarding superseded provisioning result",
			"generation", gen,
			"current_generation", m.generation)
		return nil, ErrSuperseded
	}
	m.settled = true

	if failure != nil {
		m.state = StateFailed
		m.failure = failure
		m.patient = nil
		return nil, failure
	}

	m.state = StateStable
	m.patient = patient
	m.logger.Debug("Provisioning complete",
		"generation", gen,
		"patient_id", patient.ID)
	return patient, nil
}

// isCurrent reports whether gen is still the latest, unsettled attempt.
// A timed-out attempt publishes its failure before the underlying calls
// resolve, so gen alone is not enough: the same generation can already
// be settled.
func (m *Machine) isCurrent(gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation && !m.settled
}

// setState transitions the visible state, unless superseded or settled.
func (m *Machine) setState(gen int, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation && !m.settled {
		m.state = state
	}
}

// deriveName splits the identity into default first/last patient names.
// The display name is split on whitespace; without one, the email's
// local part serves as the first name; without a remainder, the last
// name falls back to a static default.
func deriveName(identity Identity) (string, string) {
	fields := strings.Fields(identity.FullName)
	if len(fields) >= 2 {
		return fields[0], strings.Join(fields[1:], " ")
	}
	if len(fields) == 1 {
		return fields[0], defaultLastName
	}

	local := identity.Email
	if at := strings.Index(local, "@"); at > 0 {
		local = local[:at]
	}
	if local == "" {
		local = defaultLastName
	}
	return local, defaultLastName
}
