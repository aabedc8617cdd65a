package types

import (
	"errors"
	"fmt"
)

// DeployMeta contains deploy identity metadata carried through logging
// and the completion event.
type DeployMeta struct {
	// DeployID is the canonical identifier for this deploy run.
	DeployID string
	// Device is the serial device path the deploy targets.
	Device string
	// Project is the optional project name from the config file.
	Project string
}

// Validate checks the identity fields required by every deploy run.
func (m *DeployMeta) Validate() error {
	if m.DeployID == "" {
		return errors.New("deploy_id must be non-empty")
	}
	if m.Device == "" {
		return fmt.Errorf("device must be non-empty for deploy %s", m.DeployID)
	}
	return nil
}
