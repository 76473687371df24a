package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/friendhub/internal/domain/user"
	"github.com/geocoder89/friendhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, profile_picture, department, about, hobbies, friends, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if err := user.Validate(u); err != nil {
		return user.User{}, err
	}

	if u.Friends == nil {
		u.Friends = []string{}
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.ProfilePicture, u.Department, u.About,
			u.Hobbies, u.Friends, u.CreatedAt, u.UpdatedAt,
		)
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			FROM users
			WHERE lower(email) = lower($1)`,
			email,
		), &u)
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		), &u)
	})

	return u, err
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			if err := scanUser(rows, &u); err != nil {
				return err
			}
			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *UsersRepo) ListExcluding(ctx context.Context, ids []string) ([]user.Summary, error) {
	if ids == nil {
		ids = []string{}
	}

	out := make([]user.Summary, 0)

	err := r.observe("users.list_excluding", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, name
			FROM users
			WHERE NOT (id = ANY($1::text[]))
			ORDER BY created_at ASC, id ASC
		`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s user.Summary
			if err := rows.Scan(&s.ID, &s.Name); err != nil {
				return err
			}
			out = append(out, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// AddFriend appends in a single statement, so concurrent requests against the
// same user cannot overwrite each other's additions.
func (r *UsersRepo) AddFriend(ctx context.Context, userID, friendID string) (bool, error) {
	var added bool

	err := r.observe("users.add_friend", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE users
			SET friends = array_append(friends, $2::text),
				updated_at = $3
			WHERE id = $1 AND NOT ($2::text = ANY(friends))
		`, userID, friendID, time.Now().UTC())
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 1 {
			added = true
			return nil
		}

		// nothing updated: either already present or no such user
		var exists bool
		err = r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return user.ErrNotFound
		}
		return nil
	})

	return added, err
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row, u *user.User) error {
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.ProfilePicture,
		&u.Department,
		&u.About,
		&u.Hobbies,
		&u.Friends,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}

		return err
	}
	return nil
}
