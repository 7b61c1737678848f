// Package bootstrap provisions the first Administrator account when none
// exists yet. This is the only path that grants a role without going
// through internal/permissions' modify_user_roles check.
package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urlsfyi/urls/internal/users"
)

// Run is idempotent: it does nothing if an Administrator already exists,
// otherwise it reads a name and email from in and creates one.
func Run(ctx context.Context, store *users.Store, in io.Reader, out io.Writer) error {
	count, err := store.CountByPermission(ctx, users.Administrator)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	reader := bufio.NewReader(in)
	fmt.Fprint(out, "No administrator exists yet.\nAdministrator name: ")
	name, err := readLine(reader)
	if err != nil {
		return err
	}
	fmt.Fprint(out, "Administrator email: ")
	email, err := readLine(reader)
	if err != nil {
		return err
	}

	u, err := store.Create(ctx, name, email)
	if err != nil {
		return err
	}
	if _, err := store.GrantRole(ctx, u.ID, users.Administrator); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created administrator %s <%s>\n", u.Name, u.Email)
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
