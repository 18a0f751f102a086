//go:build windows

package service

import (
	"golang.org/x/sys/windows"
)

// isWindowsAdmin reports whether the process token is a member of the
// builtin Administrators group. See golang/go#28804 for why this cannot be
// answered with os.Geteuid on Windows.
func isWindowsAdmin() bool {
	var sid *windows.SID

	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	token := windows.Token(0)
	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}
