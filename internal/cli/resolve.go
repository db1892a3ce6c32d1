package cli

import (
	"errors"
	"fmt"

	"github.com/dbclone/dbclone/internal/profile"
	"github.com/dbclone/dbclone/internal/store"
)

// resolveProfile accepts either a profile id or a profile name.
func resolveProfile(ref string) (profile.ConnectionProfile, error) {
	p, err := a.store.ProfileByID(ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return profile.ConnectionProfile{}, err
	}
	p, err = a.store.ProfileByName(ref)
	if err != nil {
		return profile.ConnectionProfile{}, fmt.Errorf("no profile with id or name %q", ref)
	}
	return p, nil
}
