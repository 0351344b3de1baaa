package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"estate-backend/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type ResultKind string

const (
	ResultOK           ResultKind = "ok"
	ResultValidation   ResultKind = "validation"
	ResultNotFound     ResultKind = "not_found"
	ResultUnauthorized ResultKind = "unauthorized"
	ResultFailure      ResultKind = "failure"
)

// ActionResult is what every project action returns. Errors never escape an
// action; they are folded into Error/Errors and classified by Kind.
type ActionResult struct {
	Project  *models.Project          `json:"project,omitempty"`
	Projects []models.Project         `json:"projects,omitempty"`
	Activity []models.ProjectActivity `json:"activity,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Errors   map[string][]string      `json:"errors,omitempty"`
	Success  bool                     `json:"success,omitempty"`
	Kind     ResultKind               `json:"-"`
}

func (r ActionResult) OK() bool {
	return r.Kind == ResultOK
}

func unauthorized() ActionResult {
	return ActionResult{Error: "Unauthorized", Kind: ResultUnauthorized}
}

func notFound(msg string) ActionResult {
	return ActionResult{Error: msg, Kind: ResultNotFound}
}

func failure(msg string) ActionResult {
	return ActionResult{Error: msg, Kind: ResultFailure}
}

// UploadedFile is an image attached to a submission.
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ProjectForm is one create or update submission. Values carries the text
// fields, including the indexed flatTypes[i].type / flatTypes[i].size pairs.
type ProjectForm struct {
	Values url.Values
	Image  *UploadedFile
}

func (f ProjectForm) value(key string) string {
	return strings.TrimSpace(f.Values.Get(key))
}

func (f ProjectForm) has(key string) bool {
	_, ok := f.Values[key]
	return ok
}

type projectInput struct {
	Title         string `form:"title" validate:"required"`
	Description   string `form:"description" validate:"required"`
	Location      string `form:"location" validate:"required"`
	TotalFloors   string `form:"totalFloors" validate:"required,number"`
	LandArea      string `form:"landArea" validate:"required,numeric"`
	StartingPrice string `form:"startingPrice" validate:"omitempty,numeric"`
	Status        string `form:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
}

var fieldLabels = map[string]string{
	"title":         "Title",
	"description":   "Description",
	"location":      "Location",
	"totalFloors":   "Total floors",
	"landArea":      "Land area",
	"startingPrice": "Starting price",
	"status":        "Status",
}

type fieldErrors map[string][]string

func (e fieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

// ProjectActions runs admin and public project operations end to end.
type ProjectActions struct {
	repo     *ProjectService
	storage  BlobStorage
	resolver *ImageURLResolver
	pages    PageCache
	activity *ActivityService
	logger   *zap.Logger
	validate *validator.Validate
}

func NewProjectActions(
	repo *ProjectService,
	storage BlobStorage,
	resolver *ImageURLResolver,
	pages PageCache,
	activity *ActivityService,
	logger *zap.Logger,
) *ProjectActions {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("form")
	})
	if pages == nil {
		pages = NoopPageCache{}
	}

	return &ProjectActions{
		repo:     repo,
		storage:  storage,
		resolver: resolver,
		pages:    pages,
		activity: activity,
		logger:   logger.Named("projects"),
		validate: v,
	}
}

func (a *ProjectActions) List(ctx context.Context, status models.ProjectStatus) ActionResult {
	if status != "" && !status.Valid() {
		return notFound("Unknown project status")
	}

	projects, err := a.repo.List(ctx, status)
	if err != nil {
		a.logger.Error("failed to fetch projects", zap.String("status", string(status)), zap.Error(err))
		return failure("Failed to fetch projects")
	}

	a.resolver.ResolveProjects(ctx, projects)
	return ActionResult{Projects: projects, Kind: ResultOK}
}

func (a *ProjectActions) GetByID(ctx context.Context, id uint) ActionResult {
	project, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, ErrProjectNotFound) {
		return notFound("Project not found")
	}
	if err != nil {
		a.logger.Error("failed to fetch project", zap.Uint("id", id), zap.Error(err))
		return failure("Failed to fetch project")
	}

	a.resolver.ResolveProject(ctx, project)
	return ActionResult{Project: project, Kind: ResultOK}
}

func (a *ProjectActions) Create(ctx context.Context, session *Session, form ProjectForm) ActionResult {
	if session == nil {
		return unauthorized()
	}

	errs := fieldErrors{}
	image := a.checkImage(form.Image, true, errs)
	fields, flatTypes := a.parseProject(form, models.StatusUpcoming, 0, errs)
	if len(errs) > 0 {
		return ActionResult{Error: "Validation failed", Errors: errs, Kind: ResultValidation}
	}

	path, err := a.storage.Upload(ctx, form.Image.Data, form.Image.Name, image)
	if err != nil {
		a.logger.Error("failed to upload project image", zap.Error(err))
		return failure("Failed to create project")
	}
	fields.ImageURL = path

	project := fields.toModel()
	project.FlatTypes = flatTypes
	if err := a.repo.Create(ctx, &project); err != nil {
		a.logger.Error("failed to create project, uploaded image is orphaned",
			zap.String("image", path), zap.Error(err))
		return failure("Failed to create project")
	}

	a.invalidatePages(ctx,
		PageProjectManagement,
		PageProjects,
		PageProjectsByStatus(project.Status),
	)
	a.record(ctx, models.ActivityCreated, session, &project)

	a.resolver.ResolveProject(ctx, &project)
	return ActionResult{Project: &project, Kind: ResultOK}
}

func (a *ProjectActions) Update(ctx context.Context, session *Session, id uint, form ProjectForm) ActionResult {
	if session == nil {
		return unauthorized()
	}

	existing, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, ErrProjectNotFound) {
		return notFound("Project not found")
	}
	if err != nil {
		a.logger.Error("failed to load project for update", zap.Uint("id", id), zap.Error(err))
		return failure("Failed to update project")
	}

	errs := fieldErrors{}
	image := a.checkImage(form.Image, false, errs)
	fields, flatTypes := a.parseProject(form, existing.Status, existing.StartingPrice, errs)

	fields.ImageURL = existing.ImageURL
	if form.Image == nil && form.value("imageUrl") != "" {
		kept := a.resolver.CanonicalPath(form.value("imageUrl"))
		if !IsAbsoluteURL(kept) && !a.resolver.OwnsPath(kept) {
			errs.add("imageUrl", "Image URL is invalid")
		}
		fields.ImageURL = kept
	}
	if len(errs) > 0 {
		return ActionResult{Error: "Validation failed", Errors: errs, Kind: ResultValidation}
	}

	if form.Image != nil {
		path, err := a.storage.Upload(ctx, form.Image.Data, form.Image.Name, image)
		if err != nil {
			a.logger.Error("failed to upload project image", zap.Uint("id", id), zap.Error(err))
			return failure("Failed to update project")
		}
		fields.ImageURL = path
	}

	updated, err := a.repo.Update(ctx, id, fields, flatTypes)
	if errors.Is(err, ErrProjectNotFound) {
		return notFound("Project not found")
	}
	if err != nil {
		a.logger.Error("failed to update project", zap.Uint("id", id), zap.Error(err))
		return failure("Failed to update project")
	}

	a.invalidatePages(ctx,
		PageProjectManagement,
		PageProjects,
		PageProjectsByStatus(existing.Status),
		PageProjectsByStatus(updated.Status),
		PageProjectDetail(existing.Status, id),
		PageProjectDetail(updated.Status, id),
	)
	a.resolver.Invalidate(existing.ImageURL)
	a.record(ctx, models.ActivityUpdated, session, updated)

	a.resolver.ResolveProject(ctx, updated)
	return ActionResult{Project: updated, Kind: ResultOK}
}

func (a *ProjectActions) Delete(ctx context.Context, session *Session, id uint) ActionResult {
	if session == nil {
		return unauthorized()
	}

	existing, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, ErrProjectNotFound) {
		return notFound("Project not found")
	}
	if err != nil {
		a.logger.Error("failed to load project for delete", zap.Uint("id", id), zap.Error(err))
		return failure("Failed to delete project")
	}

	if err := a.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return notFound("Project not found")
		}
		a.logger.Error("failed to delete project", zap.Uint("id", id), zap.Error(err))
		return failure("Failed to delete project")
	}

	if path := strings.TrimSpace(existing.ImageURL); path != "" && !IsAbsoluteURL(path) {
		a.removeImage(ctx, id, path)
	}
	a.resolver.Invalidate(existing.ImageURL)

	pages := []string{PageProjectManagement, PageProjects}
	for _, status := range models.AllStatuses {
		pages = append(pages, PageProjectsByStatus(status), PageProjectDetail(status, id))
	}
	a.invalidatePages(ctx, pages...)
	a.record(ctx, models.ActivityDeleted, session, existing)

	return ActionResult{Success: true, Kind: ResultOK}
}

// removeImage deletes a blob unless another project still points at it.
func (a *ProjectActions) removeImage(ctx context.Context, id uint, path string) {
	shared, err := a.repo.ImageInUse(ctx, path)
	if err != nil {
		a.logger.Warn("failed to check image references",
			zap.Uint("id", id), zap.String("image", path), zap.Error(err))
		return
	}
	if shared {
		a.logger.Info("image still referenced, keeping blob",
			zap.Uint("id", id), zap.String("image", path))
		return
	}

	if err := a.storage.Remove(ctx, a.resolver.NormalizePath(path)); err != nil {
		a.logger.Warn("failed to delete image from storage",
			zap.Uint("id", id), zap.String("image", path), zap.Error(err))
	}
}

// Activity lists the write history of a project, including deleted ones.
func (a *ProjectActions) Activity(ctx context.Context, session *Session, id uint) ActionResult {
	if session == nil {
		return unauthorized()
	}

	entries, err := a.activity.ListByProject(ctx, id)
	if err != nil {
		a.logger.Error("failed to fetch project activity", zap.Uint("id", id), zap.Error(err))
		return failure("Failed to fetch project activity")
	}
	return ActionResult{Activity: entries, Kind: ResultOK}
}

// checkImage validates an attachment and returns its detected content type.
func (a *ProjectActions) checkImage(file *UploadedFile, required bool, errs fieldErrors) string {
	if file == nil || len(file.Data) == 0 {
		if required || file != nil {
			errs.add("imageFile", "Project image is required")
		}
		return ""
	}

	mtype := mimetype.Detect(file.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		errs.add("imageFile", "Project image must be an image file")
		return ""
	}
	return mtype.String()
}

// parseProject collects every field error before returning, so the caller can
// show them all at once.
func (a *ProjectActions) parseProject(form ProjectForm, defaultStatus models.ProjectStatus, defaultPrice float64, errs fieldErrors) (ProjectFields, []models.FlatType) {
	in := projectInput{
		Title:         form.value("title"),
		Description:   form.value("description"),
		Location:      form.value("location"),
		TotalFloors:   form.value("totalFloors"),
		LandArea:      form.value("landArea"),
		StartingPrice: form.value("startingPrice"),
		Status:        form.value("status"),
	}

	if err := a.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs.add("form", err.Error())
		}
		for _, fe := range verrs {
			errs.add(fe.Field(), validationMessage(fe))
		}
	}

	fields := ProjectFields{
		Title:         in.Title,
		Description:   in.Description,
		Location:      in.Location,
		Status:        defaultStatus,
		StartingPrice: defaultPrice,
		Parking:       checkbox(form.value("parking")),
		Elevator:      checkbox(form.value("elevator")),
	}
	if in.Status != "" {
		fields.Status = models.ProjectStatus(in.Status)
	}

	if _, bad := errs["totalFloors"]; !bad {
		floors, err := strconv.Atoi(in.TotalFloors)
		switch {
		case errors.Is(err, strconv.ErrRange):
			errs.add("totalFloors", "Total floors is too large")
		case err != nil || floors <= 0:
			errs.add("totalFloors", "Total floors must be greater than 0")
		}
		fields.TotalFloors = floors
	}
	if _, bad := errs["landArea"]; !bad {
		area, err := strconv.ParseFloat(in.LandArea, 64)
		switch {
		case errors.Is(err, strconv.ErrRange):
			errs.add("landArea", "Land area is too large")
		case err != nil || area <= 0:
			errs.add("landArea", "Land area must be greater than 0")
		}
		fields.LandArea = area
	}
	if _, bad := errs["startingPrice"]; !bad && in.StartingPrice != "" {
		price, err := strconv.ParseFloat(in.StartingPrice, 64)
		switch {
		case errors.Is(err, strconv.ErrRange):
			errs.add("startingPrice", "Starting price is too large")
		case err != nil || price < 0:
			errs.add("startingPrice", "Starting price cannot be negative")
		}
		fields.StartingPrice = price
	}

	return fields, parseFlatTypes(form, errs)
}

// parseFlatTypes reads flatTypes[0..n] until the first index with neither
// key present. Fully blank rows are ignored; half-filled rows are errors.
func parseFlatTypes(form ProjectForm, errs fieldErrors) []models.FlatType {
	var flatTypes []models.FlatType

	for i := 0; ; i++ {
		typeKey := fmt.Sprintf("flatTypes[%d].type", i)
		sizeKey := fmt.Sprintf("flatTypes[%d].size", i)
		if !form.has(typeKey) && !form.has(sizeKey) {
			break
		}

		label := form.value(typeKey)
		rawSize := form.value(sizeKey)
		switch {
		case label == "" && rawSize == "":
			continue
		case label == "":
			errs.add(typeKey, "Flat type is required")
			continue
		case rawSize == "":
			errs.add(sizeKey, "Size is required")
			continue
		}

		size, err := strconv.Atoi(rawSize)
		if errors.Is(err, strconv.ErrRange) {
			errs.add(sizeKey, "Size is too large")
			continue
		}
		if err != nil || size <= 0 {
			errs.add(sizeKey, "Size must be a whole number greater than 0")
			continue
		}
		flatTypes = append(flatTypes, models.FlatType{Type: label, Size: size})
	}

	if len(flatTypes) == 0 {
		errs.add("flatTypes", "At least one flat type is required")
	}
	return flatTypes
}

func validationMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "number":
		return label + " must be a whole number"
	case "numeric":
		return label + " must be a number"
	case "oneof":
		return label + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return label + " is invalid"
}

func checkbox(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true":
		return true
	}
	return false
}

func (a *ProjectActions) invalidatePages(ctx context.Context, pages ...string) {
	seen := make(map[string]struct{}, len(pages))
	unique := make([]string, 0, len(pages))
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	if err := a.pages.Invalidate(ctx, unique...); err != nil {
		a.logger.Warn("failed to invalidate cached pages", zap.Strings("pages", unique), zap.Error(err))
	}
}

func (a *ProjectActions) record(ctx context.Context, action string, session *Session, project *models.Project) {
	if a.activity == nil {
		return
	}
	if err := a.activity.Record(ctx, action, session.Email, project); err != nil {
		a.logger.Warn("failed to record project activity",
			zap.String("action", action), zap.Uint("id", project.ID), zap.Error(err))
	}
}
