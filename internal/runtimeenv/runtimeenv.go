// Package runtimeenv holds process-lifecycle helpers for the daemon: dropping
// privileges after binding the control socket, and notifying systemd of
// readiness, adapted from cc-backend's pkg/runtimeEnv.
package runtimeenv

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
)

// LoadEnv loads variable definitions from an .env file into the process
// environment, replacing the teacher's hand-rolled line reader with the
// godotenv library it already lists as a dependency but never wires in.
func LoadEnv(file string) error {
	return godotenv.Load(file)
}

// DropPrivileges switches the process's uid/gid to username/group. The Go
// runtime applies the underlying syscall to every OS thread, not just the
// calling one. Either argument may be empty to skip that half.
func DropPrivileges(username string, group string) error {
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			xlog.Warn("runtimeenv: error looking up group")
			return err
		}

		gid, _ := strconv.Atoi(g.Gid)
		if err := syscall.Setgid(gid); err != nil {
			xlog.Warn("runtimeenv: error setting gid")
			return err
		}
	}

	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			xlog.Warn("runtimeenv: error looking up user")
			return err
		}

		uid, _ := strconv.Atoi(u.Uid)
		if err := syscall.Setuid(uid); err != nil {
			xlog.Warn("runtimeenv: error setting uid")
			return err
		}
	}

	return nil
}

// SystemdNotify informs systemd of readiness/status when started under it:
// https://www.freedesktop.org/software/systemd/man/sd_notify.html
// It is a no-op outside of systemd (NOTIFY_SOCKET unset).
func SystemdNotify(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return
	}

	args := []string{fmt.Sprintf("--pid=%d", os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}
	if status != "" {
		args = append(args, fmt.Sprintf("--status=%s", status))
	}

	cmd := exec.Command("systemd-notify", args...)
	cmd.Run() // errors ignored on purpose, there is not much to do anyways.
}
