package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDataEnv is the environment variable holding the per-user roaming
// application-data root.
const AppDataEnv = "APPDATA"

// Fixed segments below the application-data root.
const (
	localLowDir = "LocalLow"
	vendorDir   = "D-CELL GAMES"
	productDir  = "UNBEATABLE [white label]"
	systemDir   = "SYSTEM"
	fileName    = "system-options.json"
)

// Resolver computes the absolute location of the settings file.
type Resolver struct {
	// Override, when set, is used instead of the environment-derived path.
	Override string

	// LookupEnv reads an environment variable. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// NewResolver returns a Resolver backed by the process environment.
func NewResolver(override string) *Resolver {
	return &Resolver{
		Override:  override,
		LookupEnv: os.LookupEnv,
	}
}

// Resolve returns the absolute settings file path. It fails with
// ErrConfigPath when no override is set and APPDATA is unset or empty.
func (r *Resolver) Resolve() (string, error) {
	if r.Override != "" {
		abs, err := filepath.Abs(r.Override)
		if err != nil {
			return "", fmt.Errorf("%w: resolving %q: %w", ErrConfigPath, r.Override, err)
		}

		return abs, nil
	}

	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	root, ok := lookup(AppDataEnv)
	if !ok || root == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrConfigPath, AppDataEnv)
	}

	return DerivePath(root)
}

// DerivePath builds the settings file path below the given
// application-data root (<root>/../LocalLow/<vendor>/<product>/SYSTEM/...).
func DerivePath(appData string) (string, error) {
	p := filepath.Join(appData, "..", localLowDir, vendorDir, productDir, systemDir, fileName)

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %q: %w", ErrConfigPath, p, err)
	}

	return abs, nil
}
