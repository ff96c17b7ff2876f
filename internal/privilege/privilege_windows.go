//go:build windows

package privilege

import "golang.org/x/sys/windows"

// Elevated reports whether the process runs with an elevated token that is a
// member of the local Administrators group. UWF configuration methods fail with
// access denied otherwise.
func Elevated() bool {
	if !windows.GetCurrentProcessToken().IsElevated() {
		return false
	}
	admins, err := windows.CreateWellKnownSid(windows.WinBuiltinAdministratorsSid)
	if err != nil {
		return false
	}

	// The zero token checks the effective token of the calling thread.
	member, err := windows.Token(0).IsMember(admins)
	return err == nil && member
}
