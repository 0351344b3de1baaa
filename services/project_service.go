package services

import (
	"context"
	"errors"
	"fmt"

	"estate-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectFields are the caller-writable columns of a project. ID and
// timestamps are owned by the database.
type ProjectFields struct {
	Title         string
	Description   string
	ImageURL      string
	Location      string
	TotalFloors   int
	LandArea      float64
	StartingPrice float64
	Status        models.ProjectStatus
	Parking       bool
	Elevator      bool
}

// ProjectService is the gorm-backed project repository.
type ProjectService struct {
	DB *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{DB: db}
}

func preloadFlatTypes(db *gorm.DB) *gorm.DB {
	return db.Order("flat_types.id ASC")
}

// List returns projects newest first with their flat types attached. An empty
// status returns every project.
func (s *ProjectService) List(ctx context.Context, status models.ProjectStatus) ([]models.Project, error) {
	q := s.DB.WithContext(ctx).Preload("FlatTypes", preloadFlatTypes)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	projects := []models.Project{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	return getProject(s.DB.WithContext(ctx), id)
}

func getProject(db *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := db.Preload("FlatTypes", preloadFlatTypes).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return &project, nil
}

// Create inserts the project together with its nested flat types. On success
// project carries the generated IDs and timestamps.
func (s *ProjectService) Create(ctx context.Context, project *models.Project) error {
	project.ID = 0
	if project.Status == "" {
		project.Status = models.StatusUpcoming
	}
	project.FlatTypes = detachFlatTypes(project.FlatTypes, 0)

	if err := s.DB.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// Update replaces every field and the whole flat-type set of a project inside
// a single transaction. Readers never observe a partial flat-type set.
func (s *ProjectService) Update(ctx context.Context, id uint, fields ProjectFields, flatTypes []models.FlatType) (*models.Project, error) {
	var updated *models.Project

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Project
		if err := tx.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.FlatType{}).Error; err != nil {
			return fmt.Errorf("delete flat types: %w", err)
		}

		values := fields.toModel()
		if err := tx.Model(&existing).
			Select("Title", "Description", "ImageURL", "Location", "TotalFloors",
				"LandArea", "StartingPrice", "Status", "Parking", "Elevator").
			Omit(clause.Associations).
			Updates(&values).Error; err != nil {
			return fmt.Errorf("update project: %w", err)
		}

		rows := detachFlatTypes(flatTypes, id)
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert flat types: %w", err)
			}
		}

		p, err := getProject(tx, id)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update project %d: %w", id, err)
	}

	return updated, nil
}

// Delete removes the project and its flat types. The foreign key cascades as
// well; the explicit delete keeps engines without FK enforcement consistent.
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.FlatType{}).Error; err != nil {
			return fmt.Errorf("delete flat types: %w", err)
		}

		result := tx.Delete(&models.Project{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProjectNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return err
		}
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return nil
}

// ImageInUse reports whether any project still references the stored image.
func (s *ProjectService) ImageInUse(ctx context.Context, imageURL string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Project{}).
		Where("image_url = ?", imageURL).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count image references: %w", err)
	}
	return n > 0, nil
}

// NormalizeImagePaths rewrites every stored image reference through normalize
// and returns how many rows changed.
func (s *ProjectService) NormalizeImagePaths(ctx context.Context, normalize func(string) (string, bool)) (int, error) {
	var projects []models.Project
	if err := s.DB.WithContext(ctx).Select("id", "image_url").Find(&projects).Error; err != nil {
		return 0, fmt.Errorf("load image paths: %w", err)
	}

	changed := 0
	for _, p := range projects {
		path, ok := normalize(p.ImageURL)
		if !ok || path == p.ImageURL {
			continue
		}
		if err := s.DB.WithContext(ctx).Model(&models.Project{}).
			Where("id = ?", p.ID).
			UpdateColumn("image_url", path).Error; err != nil {
			return changed, fmt.Errorf("normalize image path of project %d: %w", p.ID, err)
		}
		changed++
	}
	return changed, nil
}

func (f ProjectFields) toModel() models.Project {
	status := f.Status
	if status == "" {
		status = models.StatusUpcoming
	}
	return models.Project{
		Title:         f.Title,
		Description:   f.Description,
		ImageURL:      f.ImageURL,
		Location:      f.Location,
		TotalFloors:   f.TotalFloors,
		LandArea:      f.LandArea,
		StartingPrice: f.StartingPrice,
		Status:        status,
		Parking:       f.Parking,
		Elevator:      f.Elevator,
	}
}

// detachFlatTypes copies the rows with fresh identities so caller-supplied IDs
// can never collide with or resurrect deleted rows.
func detachFlatTypes(flatTypes []models.FlatType, projectID uint) []models.FlatType {
	rows := make([]models.FlatType, 0, len(flatTypes))
	for _, ft := range flatTypes {
		rows = append(rows, models.FlatType{ProjectID: projectID, Type: ft.Type, Size: ft.Size})
	}
	return rows
}
