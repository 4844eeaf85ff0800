package station

import "time"

// DefaultState is the state a newly provisioned station starts in.
const DefaultState = "idle"

// Maximum field lengths accepted from producers.
const (
	MaxNameLength   = 128
	MaxStateLength  = 64
	MaxConfigLength = 4096
)

// Station is a provisioned remote device.
type Station struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Config    string    `json:"conf"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields a caller controls.
func (s *Station) Validate() error {
	if s.ID <= 0 {
		return ErrInvalidID
	}
	if len(s.Name) > MaxNameLength {
		return ErrInvalidName
	}
	if err := ValidateState(s.State); err != nil {
		return err
	}
	if len(s.Config) > MaxConfigLength {
		return ErrInvalidConfig
	}
	if s.TokenHash == "" {
		return ErrMissingCredential
	}
	return nil
}

// ValidateState checks a state string before it is stored or pushed.
func ValidateState(state string) error {
	if state == "" || len(state) > MaxStateLength {
		return ErrInvalidState
	}
	return nil
}

// ValidateConfig checks a configuration blob before it is stored or pushed.
func ValidateConfig(conf string) error {
	if len(conf) > MaxConfigLength {
		return ErrInvalidConfig
	}
	return nil
}
