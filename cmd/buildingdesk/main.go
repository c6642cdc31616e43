package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/auth"
	buildingrepo "github.com/kazz187/buildingdesk/internal/building/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/config"
	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/responsibility"
	responsibilityrepo "github.com/kazz187/buildingdesk/internal/responsibility/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/seed"
	"github.com/kazz187/buildingdesk/internal/user"
	userrepo "github.com/kazz187/buildingdesk/internal/user/repositoryimpl"
	"github.com/kazz187/buildingdesk/pkg/clog"
)

var (
	app = kingpin.New("buildingdesk", "Administration tool for the BuildingDesk backend")

	bcryptCost = app.Flag("bcrypt-cost", "bcrypt cost for new passwords").Default("10").Int()

	migrateCmd = app.Command("migrate", "Apply the database schema")

	seedCmd = app.Command("seed", "Load the demo data set")

	createUserCmd      = app.Command("create-user", "Create a user")
	createUserName     = createUserCmd.Flag("name", "Display name").Required().String()
	createUserEmail    = createUserCmd.Flag("email", "Login email").Required().String()
	createUserPassword = createUserCmd.Flag("password", "Initial password").Required().String()
	createUserRole     = createUserCmd.Flag("role", "Role").Default(string(permission.RoleUser)).String()
	createUserPhone    = createUserCmd.Flag("phone", "Phone number").String()

	assignCmd        = app.Command("assign-responsibles", "Set a building's responsible users and move their tasks")
	assignBuildingID = assignCmd.Arg("building-id", "Building ID").Required().String()
	assignAdmin      = assignCmd.Flag("admin", "Admin manager user ID; empty clears it").String()
	assignBiz        = assignCmd.Flag("biz", "Biz manager user ID; empty clears it").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	slog.SetDefault(slog.New(clog.NewAttributesHandler(clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(slog.LevelInfo)))))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string) error {
	env, err := config.LoadDatabaseEnv()
	if err != nil {
		return err
	}
	pool, err := database.Connect(ctx, env)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch command {
	case migrateCmd.FullCommand():
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		fmt.Println("schema applied")
	case seedCmd.FullCommand():
		res, err := seed.Run(ctx, pool, auth.NewPasswordHasher(*bcryptCost), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("users: %d, buildings: %d, templates: %d, tasks: %d\n",
			res.UsersCreated, res.BuildingsCreated, res.TemplatesCreated, res.TasksCreated)
	case createUserCmd.FullCommand():
		return createUser(ctx, pool)
	case assignCmd.FullCommand():
		return assignResponsibles(ctx, pool)
	}
	return nil
}

func createUser(ctx context.Context, pool *pgxpool.Pool) error {
	role, err := permission.ParseRole(*createUserRole)
	if err != nil {
		return err
	}
	hash, err := auth.NewPasswordHasher(*bcryptCost).Hash(*createUserPassword)
	if err != nil {
		return err
	}
	now := time.Now()
	u := &user.User{
		ID:           ulid.Make().String(),
		Name:         *createUserName,
		Email:        *createUserEmail,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if *createUserPhone != "" {
		u.PhoneNumber = createUserPhone
	}
	if err := userrepo.NewPostgresRepository(pool).Create(ctx, u); err != nil {
		return err
	}
	fmt.Printf("created user %s (%s, %s)\n", u.ID, u.Email, u.Role)
	return nil
}

func assignResponsibles(ctx context.Context, pool *pgxpool.Pool) error {
	engine := responsibility.NewEngine(
		userrepo.NewPostgresRepository(pool),
		buildingrepo.NewPostgresRepository(pool),
		responsibilityrepo.NewPostgresUnitOfWork(pool),
		nil,
	)
	res, err := engine.Assign(ctx, responsibility.Request{
		BuildingID:     *assignBuildingID,
		AdminManagerID: assignAdmin,
		BizManagerID:   assignBiz,
		ActorID:        "cli",
	})
	if err != nil {
		return err
	}
	for _, r := range res.Reassignments {
		fmt.Printf("%s: %d task(s) %s -> %s\n", r.ManagerType, r.Count, orNone(r.From), orNone(r.To))
	}
	fmt.Printf("building %s updated, %d reassignment pass(es)\n", res.Building.ID, len(res.Reassignments))
	return nil
}

func orNone(id *string) string {
	if id == nil {
		return "(none)"
	}
	return *id
}
