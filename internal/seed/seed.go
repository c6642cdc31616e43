// Package seed loads the demo data set: one user per role, four buildings,
// the standard task templates and a task in every status.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/auth"
	"github.com/kazz187/buildingdesk/internal/building"
	buildingrepo "github.com/kazz187/buildingdesk/internal/building/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/task"
	taskrepo "github.com/kazz187/buildingdesk/internal/task/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	templaterepo "github.com/kazz187/buildingdesk/internal/tasktemplate/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/user"
	userrepo "github.com/kazz187/buildingdesk/internal/user/repositoryimpl"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type seedUser struct {
	name, email, password string
	role                  permission.Role
	phone                 string
}

var users = []seedUser{
	{"Super Admin", "admin@example.com", "admin1234", permission.RoleSuperAdmin, "010-1111-1111"},
	{"Building Admin", "building@example.com", "building1234", permission.RoleBuildingAdmin, "010-2222-2222"},
	{"Admin Manager", "admin-manager@example.com", "manager1234", permission.RoleAdminManager, "010-3333-3333"},
	{"Biz Manager", "biz-manager@example.com", "manager1234", permission.RoleBizManager, "010-4444-4444"},
	{"Building Manager", "manager@example.com", "manager1234", permission.RoleBuildingManager, "010-5555-5555"},
	{"General User", "user@example.com", "user1234", permission.RoleUser, "010-6666-6666"},
}

const defaultImageURL = "/images/buildings/default-building.jpg"

type seedBuilding struct {
	name, address, description string
	floors, yearBuilt          int
	totalArea                  float64
	status                     building.Status
	managers                   []permission.Role
	admin, biz                 permission.Role
}

var buildings = []seedBuilding{
	{
		name:        "Central Tower",
		address:     "123 Teheran-ro, Gangnam-gu, Seoul",
		description: "A modern office building in central Gangnam.",
		floors:      25,
		yearBuilt:   2015,
		totalArea:   15000,
		status:      building.StatusActive,
		managers:    []permission.Role{permission.RoleSuperAdmin, permission.RoleBuildingAdmin, permission.RoleBuildingManager},
		admin:       permission.RoleAdminManager,
		biz:         permission.RoleBizManager,
	},
	{
		name:        "Grand Office",
		address:     "45 Banpo-daero, Seocho-gu, Seoul",
		description: "An office building in the Seocho business district.",
		floors:      18,
		yearBuilt:   2010,
		totalArea:   12000,
		status:      building.StatusActive,
		managers:    []permission.Role{permission.RoleSuperAdmin, permission.RoleBuildingManager},
		admin:       permission.RoleAdminManager,
	},
	{
		name:        "Sky Building",
		address:     "78 Olympic-ro, Songpa-gu, Seoul",
		description: "A mixed-use building with offices and retail space.",
		floors:      22,
		yearBuilt:   2018,
		totalArea:   20000,
		status:      building.StatusActive,
		managers:    []permission.Role{permission.RoleSuperAdmin, permission.RoleBuildingAdmin},
		biz:         permission.RoleBizManager,
	},
	{
		name:        "Parkview Tower",
		address:     "567 Mapo-daero, Mapo-gu, Seoul",
		description: "A compact office building in central Mapo.",
		floors:      15,
		yearBuilt:   2012,
		totalArea:   8500,
		status:      building.StatusMaintenance,
		managers:    []permission.Role{permission.RoleSuperAdmin},
	},
}

var templates = []tasktemplate.Template{
	{Title: "Fire safety inspection", Description: "Monthly fire equipment inspection and report", Priority: tasktemplate.PriorityHigh, ManagerType: tasktemplate.ManagerTypeAdmin, Category: tasktemplate.CategoryInspection},
	{Title: "Elevator maintenance", Description: "Elevator safety check and maintenance", Priority: tasktemplate.PriorityHigh, ManagerType: tasktemplate.ManagerTypeAdmin, Category: tasktemplate.CategoryMaintenance},
	{Title: "Security camera check", Description: "Check CCTV cameras and recorders", Priority: tasktemplate.PriorityMedium, ManagerType: tasktemplate.ManagerTypeAdmin, Category: tasktemplate.CategorySecurity},
	{Title: "Common area cleaning", Description: "Clean the lobby, corridors and restrooms", Priority: tasktemplate.PriorityMedium, ManagerType: tasktemplate.ManagerTypeAdmin, Category: tasktemplate.CategoryCleaning},
	{Title: "Lease renewal", Description: "Track lease expiry and renewals", Priority: tasktemplate.PriorityHigh, ManagerType: tasktemplate.ManagerTypeBiz, Category: tasktemplate.CategoryContract},
	{Title: "Rent collection", Description: "Confirm monthly rent payments", Priority: tasktemplate.PriorityHigh, ManagerType: tasktemplate.ManagerTypeBiz, Category: tasktemplate.CategoryFinancial},
	{Title: "Tenant complaints", Description: "Receive and resolve tenant complaints", Priority: tasktemplate.PriorityMedium, ManagerType: tasktemplate.ManagerTypeBoth, Category: tasktemplate.CategoryTenant},
	{Title: "Daily facility patrol", Description: "Daily patrol of the main facilities", Priority: tasktemplate.PriorityMedium, ManagerType: tasktemplate.ManagerTypeAdmin, Category: tasktemplate.CategoryFacility},
}

type seedTask struct {
	status          task.Status
	dueInDays       int
	building        int
	template        int
	creator         permission.Role
	assignee        permission.Role
	completedInDays int
}

var tasks = []seedTask{
	{task.StatusCompleted, -5, 0, 0, permission.RoleSuperAdmin, permission.RoleAdminManager, -6},
	{task.StatusCompleted, -3, 1, 1, permission.RoleBuildingAdmin, permission.RoleBuildingManager, -4},
	{task.StatusInProgress, 2, 0, 2, permission.RoleBuildingAdmin, permission.RoleAdminManager, 0},
	{task.StatusInProgress, 3, 2, 4, permission.RoleSuperAdmin, permission.RoleBizManager, 0},
	{task.StatusPending, 5, 0, 3, permission.RoleAdminManager, permission.RoleBuildingManager, 0},
	{task.StatusPending, 7, 1, 5, permission.RoleSuperAdmin, "", 0},
	{task.StatusDelayed, -1, 3, 7, permission.RoleBuildingAdmin, permission.RoleBuildingManager, 0},
	{task.StatusCancelled, 10, 2, 6, permission.RoleBuildingAdmin, permission.RoleBuildingManager, 0},
}

type Result struct {
	UsersCreated     int
	BuildingsCreated int
	TemplatesCreated int
	TasksCreated     int
}

// Run inserts the demo data in one transaction. Users are matched by
// email; the rest is only created when no building exists yet.
func Run(ctx context.Context, db database.DBTX, hasher *auth.PasswordHasher, now time.Time) (*Result, error) {
	var res *Result
	err := database.InTx(ctx, db, func(tx pgx.Tx) error {
		var err error
		res, err = run(ctx, tx, hasher, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func run(ctx context.Context, tx pgx.Tx, hasher *auth.PasswordHasher, now time.Time) (*Result, error) {
	res := &Result{}
	userRepo := userrepo.NewPostgresRepository(tx)
	buildingRepo := buildingrepo.NewPostgresRepository(tx)
	templateRepo := templaterepo.NewPostgresRepository(tx)
	taskRepo := taskrepo.NewPostgresRepository(tx)

	byRole := make(map[permission.Role]string, len(users))
	for _, su := range users {
		existing, err := userRepo.GetByEmail(ctx, su.email)
		switch {
		case err == nil:
			byRole[su.role] = existing.ID
			continue
		case !cerr.IsCode(err, cerr.NotFound):
			return nil, err
		}
		hash, err := hasher.Hash(su.password)
		if err != nil {
			return nil, err
		}
		phone := su.phone
		u := &user.User{
			ID:           ulid.Make().String(),
			Name:         su.name,
			Email:        su.email,
			PasswordHash: hash,
			Role:         su.role,
			PhoneNumber:  &phone,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := userRepo.Create(ctx, u); err != nil {
			return nil, err
		}
		byRole[su.role] = u.ID
		res.UsersCreated++
		slog.InfoContext(ctx, "seeded user", "email", su.email, "role", su.role)
	}

	existing, err := buildingRepo.List(ctx, building.ListFilter{Status: "all"})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		slog.InfoContext(ctx, "buildings already present, skipping demo data", "count", len(existing))
		return res, nil
	}

	roleID := func(r permission.Role) *string {
		if r == "" {
			return nil
		}
		id := byRole[r]
		return &id
	}

	buildingIDs := make([]string, 0, len(buildings))
	for _, sb := range buildings {
		yearBuilt, totalArea, description, imageURL := sb.yearBuilt, sb.totalArea, sb.description, defaultImageURL
		b := &building.Building{
			ID:             ulid.Make().String(),
			Name:           sb.name,
			Address:        sb.address,
			Floors:         sb.floors,
			YearBuilt:      &yearBuilt,
			TotalArea:      &totalArea,
			Description:    &description,
			Status:         sb.status,
			ImageURL:       &imageURL,
			AdminManagerID: roleID(sb.admin),
			BizManagerID:   roleID(sb.biz),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		managerIDs := make([]string, 0, len(sb.managers))
		for _, r := range sb.managers {
			managerIDs = append(managerIDs, byRole[r])
		}
		if err := buildingRepo.Create(ctx, b, managerIDs); err != nil {
			return nil, err
		}
		buildingIDs = append(buildingIDs, b.ID)
		res.BuildingsCreated++
	}

	templateIDs := make([]string, 0, len(templates))
	for i, st := range templates {
		tmpl := st
		tmpl.ID = ulid.Make().String()
		// Spread creation times so the newest-first listing is stable.
		tmpl.CreatedAt = now.Add(time.Duration(i) * time.Second)
		tmpl.UpdatedAt = tmpl.CreatedAt
		if err := templateRepo.Create(ctx, &tmpl); err != nil {
			return nil, err
		}
		templateIDs = append(templateIDs, tmpl.ID)
		res.TemplatesCreated++
	}

	day := 24 * time.Hour
	for _, st := range tasks {
		due := now.Add(time.Duration(st.dueInDays) * day)
		t := &task.Task{
			ID:         ulid.Make().String(),
			Status:     st.status,
			DueDate:    &due,
			BuildingID: buildingIDs[st.building],
			TemplateID: templateIDs[st.template],
			CreatorID:  roleID(st.creator),
			AssigneeID: roleID(st.assignee),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := taskRepo.Create(ctx, t); err != nil {
			return nil, err
		}
		if st.status == task.StatusCompleted {
			completedAt := now.Add(time.Duration(st.completedInDays) * day)
			_, err := taskRepo.Complete(ctx, &task.CompletionReport{
				ID:        ulid.Make().String(),
				TaskID:    t.ID,
				Content:   "Completed without issues.",
				ImageURLs: `["/images/reports/sample-report.jpg"]`,
				TimeSpent: 120,
				CreatedAt: completedAt,
				UpdatedAt: completedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to complete seeded task: %w", err)
			}
		}
		res.TasksCreated++
	}
	slog.InfoContext(ctx, "seeded demo data",
		"buildings", res.BuildingsCreated,
		"templates", res.TemplatesCreated,
		"tasks", res.TasksCreated,
	)
	return res, nil
}
