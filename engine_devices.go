package mfaflow

import (
	"context"
	"fmt"

	"github.com/MrEthical07/mfaflow/platform"
)

// ListDevices describes the listdevices operation and its observable behavior.
//
// Concurrent lookups for the same environment and user collapse into a single
// remote call.
//
// ListDevices may return an error when input validation, dependency calls, or security checks fail.
// ListDevices does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListDevices(ctx context.Context, creds *Credentials) ([]Device, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if creds == nil || creds.EnvironmentID == "" || creds.Username == "" {
		return nil, fmt.Errorf("%w: environment id and username required", ErrCredentialsIncomplete)
	}

	key := creds.EnvironmentID + "|" + creds.Username
	result, err, _ := e.deviceGroup.Do(key, func() (any, error) {
		return e.platform.ListDevices(ctx, platform.ListDevicesRequest{
			EnvironmentID: creds.EnvironmentID,
			Username:      creds.Username,
			Auth:          creds.Auth(),
		})
	})
	if err != nil {
		e.metricInc(MetricDeviceLookupFailure)
		e.emitAudit(ctx, auditEventDeviceLookup, false, nil, "", ErrDeviceLookupFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrDeviceLookupFailed, err)
	}

	e.metricInc(MetricDeviceLookupSuccess)
	return result.([]Device), nil
}

// DeleteDevice removes a registered device. Used to back out of a registration
// that cannot be completed.
//
// DeleteDevice may return an error when input validation, dependency calls, or security checks fail.
// DeleteDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DeleteDevice(ctx context.Context, creds *Credentials, deviceID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if creds == nil || creds.EnvironmentID == "" || creds.Username == "" || deviceID == "" {
		return fmt.Errorf("%w: environment id, username and device id required", ErrCredentialsIncomplete)
	}

	err := e.platform.DeleteDevice(ctx, platform.DeleteDeviceRequest{
		EnvironmentID: creds.EnvironmentID,
		Username:      creds.Username,
		DeviceID:      deviceID,
		Auth:          creds.Auth(),
	})
	if err != nil {
		e.emitAudit(ctx, auditEventDeviceDeleted, false, nil, deviceID, ErrDeviceLookupFailed, nil)
		return fmt.Errorf("%w: %v", ErrDeviceLookupFailed, err)
	}

	e.metricInc(MetricDeviceDeleted)
	e.emitAudit(ctx, auditEventDeviceDeleted, true, nil, deviceID, nil, nil)
	return nil
}
