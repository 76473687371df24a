package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/friendhub/internal/db"
	"github.com/geocoder89/friendhub/internal/domain/user"
	"github.com/geocoder89/friendhub/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupRepo(t *testing.T) (*postgres.UsersRepo, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := pool.Exec(ctx, `TRUNCATE users`); err != nil {
		t.Fatalf("failed to truncate users: %v", err)
	}

	return postgres.NewUsersRepo(pool, nil), pool
}

func newUser(name, email string) user.User {
	return user.NewFromRegisterRequest(user.RegisterRequest{
		Name:           name,
		Email:          email,
		ProfilePicture: name + ".png",
		Department:     "Engineering",
		About:          "about " + name,
		Hobbies:        []string{"chess"},
	}, "$2a$04$notarealhashbutnonempty")
}

func TestUsersRepo_CreateAndLookup(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	alice, err := repo.Create(ctx, newUser("alice", "a@x.com"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "A@X.COM")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != alice.ID || got.PasswordHash != alice.PasswordHash || len(got.Friends) != 0 {
		t.Fatalf("unexpected record %+v", got)
	}

	if _, err := repo.Create(ctx, newUser("alice2", "a@X.com")); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	bad := newUser("bob", "b@x.com")
	bad.Department = ""
	var vErr *user.ValidationError
	if _, err := repo.Create(ctx, bad); !errors.As(err, &vErr) || vErr.Field != "department" {
		t.Fatalf("expected validation error on department, got %v", err)
	}
}

func TestUsersRepo_AddFriendAndListExcluding(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	alice, _ := repo.Create(ctx, newUser("alice", "a@x.com"))
	bob, _ := repo.Create(ctx, newUser("bob", "b@x.com"))
	carol, _ := repo.Create(ctx, newUser("carol", "c@x.com"))

	added, err := repo.AddFriend(ctx, alice.ID, bob.ID)
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}

	added, err = repo.AddFriend(ctx, alice.ID, bob.ID)
	if err != nil || added {
		t.Fatalf("repeat add: added=%v err=%v", added, err)
	}

	if _, err := repo.AddFriend(ctx, "missing", bob.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}

	got, _ := repo.GetByID(ctx, alice.ID)

	out, err := repo.ListExcluding(ctx, got.Excluded())
	if err != nil {
		t.Fatalf("list excluding: %v", err)
	}
	if len(out) != 1 || out[0].ID != carol.ID || out[0].Name != "carol" {
		t.Fatalf("unexpected candidates %+v", out)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 3 || all[0].ID != alice.ID {
		t.Fatalf("expected creation order, got %+v err=%v", all, err)
	}
}

func TestUsersRepo_ConcurrentAddFriendKeepsEveryUpdate(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	alice, _ := repo.Create(ctx, newUser("alice", "a@x.com"))

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		u, err := repo.Create(ctx, newUser("friend", "f"+string(rune('a'+i))+"@x.com"))
		if err != nil {
			t.Fatalf("create friend: %v", err)
		}
		ids[i] = u.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := repo.AddFriend(ctx, alice.ID, id); err != nil {
				t.Errorf("add friend: %v", err)
			}
		}(id)
	}
	wg.Wait()

	got, _ := repo.GetByID(ctx, alice.ID)
	if len(got.Friends) != n {
		t.Fatalf("expected %d friends, got %d", n, len(got.Friends))
	}
}
