package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/rbac"
)

var _ directory.Store = (*Store)(nil)

const userColumns = `id, email, display_name, primary_role, password_hash, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (directory.User, error) {
	var (
		u       directory.User
		rawRole string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &rawRole, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return directory.User{}, err
	}
	role, err := rbac.ParseRole(rawRole)
	if err != nil {
		return directory.User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.PrimaryRole = role
	return u, nil
}

// CreateUser inserts the principal record together with its role-assignment
// rows in one transaction, mirroring DeleteUser: a failure mid-way leaves
// neither the user nor a partial assignment set behind.
func (s *Store) CreateUser(ctx context.Context, u *directory.User, roles []rbac.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into users (id, email, display_name, primary_role, password_hash, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.DisplayName, string(u.PrimaryRole), u.PasswordHash, u.Status, u.CreatedAt, u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.ErrConflict
		}
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role) values ($1, $2)
		`, u.ID, string(role)); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return directory.ErrConflict
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	var user directory.User
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
		u, err := scanUser(row)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (directory.User, error) {
	var user directory.User
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
		u, err := scanUser(row)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]directory.User, error) {
	var users []directory.User
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by email`)
		if err != nil {
			return err
		}
		defer rows.Close()

		var result []directory.User
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			result = append(result, u)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		users = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd directory.Update) (directory.User, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.DisplayName != nil {
		setClauses = append(setClauses, fmt.Sprintf("display_name = $%d", idx))
		args = append(args, *upd.DisplayName)
		idx++
	}
	if upd.Password != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.Password)
		idx++
	}
	if upd.PrimaryRole != nil {
		setClauses = append(setClauses, fmt.Sprintf("primary_role = $%d", idx))
		args = append(args, string(*upd.PrimaryRole))
		idx++
	}
	if upd.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return directory.User{}, directory.ErrConflict
			}
			return directory.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return directory.User{}, err
		}
		if aff == 0 {
			return directory.User{}, directory.ErrNotFound
		}
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the principal record together with its role-assignment
// rows in one transaction, so no orphaned (user, role) pairs survive.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) AssignRole(ctx context.Context, userID string, role rbac.Role) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role) values ($1, $2)
	`, userID, string(role))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.ErrConflict
			case pgErrForeignKeyViolation:
				return directory.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) RemoveRole(ctx context.Context, userID string, role rbac.Role) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role = $2
	`, userID, string(role))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) RolesForUser(ctx context.Context, userID string) ([]rbac.Role, error) {
	var roles []rbac.Role
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			select role from user_roles where user_id = $1 order by role
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		var result []rbac.Role
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			role, err := rbac.ParseRole(raw)
			if err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}
			result = append(result, role)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		roles = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}
