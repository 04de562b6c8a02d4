// Package seed fills an empty database with reproducible fake content.
//
// Every random choice comes from the seed passed to New, so two runs with
// the same seed against empty stores produce the same data. Steps are
// idempotent: re-running them against a populated store adds nothing that
// is already there.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/describe"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/repository"
)

// UserStore is the slice of account persistence the seeder needs.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ContentStore persists photos and the edges around them.
type ContentStore interface {
	GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error)
	CreatePhoto(ctx context.Context, photo *domain.Photo) (bool, error)
	TagPhoto(ctx context.Context, photoID, tagID string) error
	CreateComment(ctx context.Context, comment *domain.Comment) error
	CreateNotification(ctx context.Context, n *domain.Notification) error
	Follow(ctx context.Context, followerID, followedID string) (bool, error)
	Collect(ctx context.Context, userID, photoID string) (bool, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	ListPhotoIDs(ctx context.Context) ([]string, error)
	CountComments(ctx context.Context) (int, error)
}

// Store groups the persistence the seeder writes to.
type Store struct {
	Users   UserStore
	Content ContentStore
}

// Hasher hashes seeded passwords.
type Hasher interface {
	Hash(password string) (string, error)
}

// DefaultPassword is the password of every generated account.
const DefaultPassword = "moments-password"

// Admin describes the administrator account.
type Admin struct {
	Name     string
	Username string
	Email    string
	Password string
}

// DefaultAdmin is used when Plan.Admin is zero.
var DefaultAdmin = Admin{
	Name:     "Moments Admin",
	Username: "admin",
	Email:    "admin@moments.local",
	Password: DefaultPassword,
}

// Plan sets how much of each kind of content to generate.
type Plan struct {
	Admin     Admin
	Users     int
	Follows   int
	Tags      int
	UploadDir string
	Collects  int
	Comments  int
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Follows  int
	Tags     int
	Photos   int
	Collects int
	Comments int
}

// Seeder generates fake content.
type Seeder struct {
	users   UserStore
	content ContentStore
	hasher  Hasher
	catalog *describe.Catalog
	faker   *gofakeit.Faker
	rng     *rand.Rand
	logger  *zap.Logger
	epoch   time.Time
}

// New builds a seeder drawing all randomness from seed. catalog may be nil.
func New(store Store, hasher Hasher, catalog *describe.Catalog, seed uint64, logger *zap.Logger) *Seeder {
	if catalog == nil {
		catalog = describe.NewCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		users:   store.Users,
		content: store.Content,
		hasher:  hasher,
		catalog: catalog,
		faker:   gofakeit.NewFaker(rand.NewPCG(seed, seed), true),
		rng:     rand.New(rand.NewPCG(seed, ^seed)),
		logger:  logger,
		epoch:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Run executes every step of plan in dependency order.
func (s *Seeder) Run(ctx context.Context, plan Plan) (Summary, error) {
	var sum Summary
	var err error

	if _, err = s.Admin(ctx, plan.Admin); err != nil {
		return sum, fmt.Errorf("seed admin: %w", err)
	}
	if sum.Users, err = s.Users(ctx, plan.Users); err != nil {
		return sum, fmt.Errorf("seed users: %w", err)
	}
	if sum.Follows, err = s.Follows(ctx, plan.Follows); err != nil {
		return sum, fmt.Errorf("seed follows: %w", err)
	}
	if sum.Tags, err = s.Tags(ctx, plan.Tags); err != nil {
		return sum, fmt.Errorf("seed tags: %w", err)
	}
	if plan.UploadDir != "" {
		if sum.Photos, err = s.Photos(ctx, plan.UploadDir); err != nil {
			return sum, fmt.Errorf("seed photos: %w", err)
		}
	}
	if sum.Collects, err = s.Collects(ctx, plan.Collects); err != nil {
		return sum, fmt.Errorf("seed collects: %w", err)
	}
	if sum.Comments, err = s.Comments(ctx, plan.Comments); err != nil {
		return sum, fmt.Errorf("seed comments: %w", err)
	}

	s.logger.Info("seed complete",
		zap.Int("users", sum.Users),
		zap.Int("follows", sum.Follows),
		zap.Int("tags", sum.Tags),
		zap.Int("photos", sum.Photos),
		zap.Int("collects", sum.Collects),
		zap.Int("comments", sum.Comments))
	return sum, nil
}

// WelcomeMessage is the first notification the administrator receives.
const WelcomeMessage = "Hello, welcome to Moments."

// Admin creates the administrator, with a welcome notification, unless an
// account with its email exists.
func (s *Seeder) Admin(ctx context.Context, admin Admin) (*domain.User, error) {
	if admin == (Admin{}) {
		admin = DefaultAdmin
	}
	// Draw the profile before the existence check so later steps see the
	// same random stream on every run.
	user := &domain.User{
		Name:      admin.Name,
		Username:  admin.Username,
		Email:     strings.ToLower(admin.Email),
		Role:      domain.RoleAdministrator,
		Confirmed: true,
		Bio:       truncate(s.faker.Sentence(8), 120),
		Website:   s.faker.URL(),
		Location:  truncate(s.faker.City(), 50),
	}

	existing, err := s.users.GetByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if user.PasswordHash, err = s.hasher.Hash(admin.Password); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	welcome := &domain.Notification{ReceiverID: user.ID, Message: WelcomeMessage}
	if err := s.content.CreateNotification(ctx, welcome); err != nil {
		return nil, err
	}
	return user, nil
}

// Users creates up to n confirmed accounts. Generated identities that
// collide with stored ones are skipped, so the same seed run twice creates
// nothing the second time.
func (s *Seeder) Users(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	hash, err := s.hasher.Hash(DefaultPassword)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := 0; i < n; i++ {
		user := &domain.User{
			Name:         truncate(s.faker.Name(), 30),
			Username:     truncate(strings.ToLower(s.faker.Username()), 20),
			Email:        strings.ToLower(s.faker.Email()),
			PasswordHash: hash,
			Role:         domain.RoleUser,
			Confirmed:    true,
			Bio:          truncate(s.faker.Sentence(10), 120),
			Website:      s.faker.URL(),
			Location:     truncate(s.faker.City(), 50),
		}

		exists, err := s.userExists(ctx, user)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Seeder) userExists(ctx context.Context, user *domain.User) (bool, error) {
	for _, lookup := range []func() error{
		func() error { _, err := s.users.GetByEmail(ctx, user.Email); return err },
		func() error { _, err := s.users.GetByUsername(ctx, user.Username); return err },
	} {
		err := lookup()
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, err
		}
	}
	return false, nil
}

// Follows draws n follower/followed pairs among existing users and
// notifies each newly followed user.
func (s *Seeder) Follows(ctx context.Context, n int) (int, error) {
	ids, err := s.content.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) < 2 {
		return 0, nil
	}

	created := 0
	for i := 0; i < n; i++ {
		follower := ids[s.rng.IntN(len(ids))]
		followed := ids[s.rng.IntN(len(ids))]
		if follower == followed {
			continue
		}
		ok, err := s.content.Follow(ctx, follower, followed)
		if err != nil {
			return created, err
		}
		if !ok {
			continue
		}
		created++
		note := &domain.Notification{ReceiverID: followed, Message: "You have a new follower."}
		if err := s.content.CreateNotification(ctx, note); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Tags get-or-creates n generated tag names.
func (s *Seeder) Tags(ctx context.Context, n int) (int, error) {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		name := strings.ToLower(s.faker.Word())
		if _, err := s.content.GetOrCreateTag(ctx, name); err != nil {
			return len(seen), err
		}
		seen[name] = struct{}{}
	}
	return len(seen), nil
}

// Photos records every image in uploadDir. The catalog supplies the
// description and tags; images it does not know get a fake sentence.
func (s *Seeder) Photos(ctx context.Context, uploadDir string) (int, error) {
	names, err := describe.ListImages(uploadDir)
	if err != nil {
		return 0, err
	}
	ids, err := s.content.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	created := 0
	for _, name := range names {
		author := ids[s.rng.IntN(len(ids))]
		fallback := s.faker.Sentence(12)
		createdAt := s.epoch.Add(time.Duration(s.rng.Int64N(int64(365 * 24 * time.Hour))))

		desc, known := s.catalog.Lookup(name)
		description := fallback
		if known && desc.Caption != "" {
			description = desc.Caption
		}

		photo := &domain.Photo{
			AuthorID:    author,
			Description: truncate(description, 500),
			Filename:    name,
			FilenameS:   thumbnailName(name, "_s"),
			FilenameM:   thumbnailName(name, "_m"),
			CreatedAt:   createdAt,
		}
		ok, err := s.content.CreatePhoto(ctx, photo)
		if err != nil {
			return created, err
		}
		if !ok {
			continue
		}
		created++

		for _, label := range desc.Labels {
			tag, err := s.content.GetOrCreateTag(ctx, label)
			if err != nil {
				return created, err
			}
			if err := s.content.TagPhoto(ctx, photo.ID, tag.ID); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

// Collects draws n user/photo collect edges.
func (s *Seeder) Collects(ctx context.Context, n int) (int, error) {
	users, photos, err := s.usersAndPhotos(ctx)
	if err != nil || len(users) == 0 || len(photos) == 0 {
		return 0, err
	}

	created := 0
	for i := 0; i < n; i++ {
		user := users[s.rng.IntN(len(users))]
		photo := photos[s.rng.IntN(len(photos))]
		ok, err := s.content.Collect(ctx, user, photo)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// Comments tops the store up to n comments.
func (s *Seeder) Comments(ctx context.Context, n int) (int, error) {
	existing, err := s.content.CountComments(ctx)
	if err != nil {
		return 0, err
	}
	users, photos, err := s.usersAndPhotos(ctx)
	if err != nil || len(users) == 0 || len(photos) == 0 {
		return 0, err
	}

	created := 0
	for i := existing; i < n; i++ {
		comment := &domain.Comment{
			AuthorID:  users[s.rng.IntN(len(users))],
			PhotoID:   photos[s.rng.IntN(len(photos))],
			Body:      s.faker.Sentence(s.rng.IntN(12) + 3),
			CreatedAt: s.epoch.Add(time.Duration(s.rng.Int64N(int64(365 * 24 * time.Hour)))),
		}
		if err := s.content.CreateComment(ctx, comment); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		s.logger.Debug("comments created", zap.Int("count", created))
	}
	return created, nil
}

func (s *Seeder) usersAndPhotos(ctx context.Context) ([]string, []string, error) {
	users, err := s.content.ListUserIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	photos, err := s.content.ListPhotoIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	return users, photos, nil
}

func thumbnailName(name, suffix string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + suffix + ext
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
