package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
)

// CatalogRepository reads riddles, steps, hints and reviews.
// The catalog is authored elsewhere; the Create methods exist for seeding and tests.
type CatalogRepository struct {
	db database.Querier
}

// NewCatalogRepository creates a catalog repository on a pool or a transaction
func NewCatalogRepository(db database.Querier) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetRiddle retrieves a riddle by ID
func (r *CatalogRepository) GetRiddle(ctx context.Context, id int64) (*models.Riddle, error) {
	query := `SELECT id, title, is_private, password, created_at FROM riddles WHERE id = ?`

	riddle := &models.Riddle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&riddle.ID,
		&riddle.Title,
		&riddle.IsPrivate,
		&riddle.Password,
		&riddle.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get riddle: %w", err)
	}
	return riddle, nil
}

const stepColumns = `id, riddle_id, order_number, code, latitude, longitude, created_at`

func scanStep(row interface{ Scan(...any) error }) (*models.Step, error) {
	step := &models.Step{}
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&step.ID,
		&step.RiddleID,
		&step.OrderNumber,
		&step.Code,
		&lat,
		&lng,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		step.Latitude = &lat.Float64
	}
	if lng.Valid {
		step.Longitude = &lng.Float64
	}
	return step, nil
}

func (r *CatalogRepository) getStep(ctx context.Context, query string, args ...any) (*models.Step, error) {
	step, err := scanStep(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// GetStep retrieves a step by ID
func (r *CatalogRepository) GetStep(ctx context.Context, id int64) (*models.Step, error) {
	return r.getStep(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id)
}

// FirstStep returns the lowest-ordered step of a riddle, or nil when it has none
func (r *CatalogRepository) FirstStep(ctx context.Context, riddleID int64) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE riddle_id = ? ORDER BY order_number ASC LIMIT 1`
	return r.getStep(ctx, query, riddleID)
}

// NextStep returns the step following afterOrder in the riddle, or nil after the last one
func (r *CatalogRepository) NextStep(ctx context.Context, riddleID int64, afterOrder int) (*models.Step, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM steps
		WHERE riddle_id = ? AND order_number > ?
		ORDER BY order_number ASC
		LIMIT 1
	`
	return r.getStep(ctx, query, riddleID, afterOrder)
}

// CountSteps returns the number of steps in a riddle
func (r *CatalogRepository) CountSteps(ctx context.Context, riddleID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM steps WHERE riddle_id = ?`, riddleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count steps: %w", err)
	}
	return count, nil
}

// ListHints returns the hints of a step ordered by order_number
func (r *CatalogRepository) ListHints(ctx context.Context, stepID int64) ([]models.Hint, error) {
	query := `
		SELECT id, step_id, order_number, content
		FROM hints
		WHERE step_id = ?
		ORDER BY order_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hints: %w", err)
	}
	defer rows.Close()

	var hints []models.Hint
	for rows.Next() {
		var hint models.Hint
		if err := rows.Scan(&hint.ID, &hint.StepID, &hint.OrderNumber, &hint.Content); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}
		hints = append(hints, hint)
	}
	return hints, rows.Err()
}

// HintExists reports whether a step has a hint at the given order
func (r *CatalogRepository) HintExists(ctx context.Context, stepID int64, order int) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM hints WHERE step_id = ? AND order_number = ?`
	if err := r.db.QueryRowContext(ctx, query, stepID, order).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check hint: %w", err)
	}
	return count > 0, nil
}

// AverageDifficulty returns the mean review difficulty of a riddle and the number of reviews.
// The average is 0 when there are no reviews.
func (r *CatalogRepository) AverageDifficulty(ctx context.Context, riddleID int64) (float64, int, error) {
	var avg sql.NullFloat64
	var count int
	query := `SELECT AVG(difficulty), COUNT(*) FROM reviews WHERE riddle_id = ?`
	if err := r.db.QueryRowContext(ctx, query, riddleID).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to average difficulty: %w", err)
	}
	if !avg.Valid {
		return 0, 0, nil
	}
	return avg.Float64, count, nil
}

// HasReviewed reports whether a user has reviewed a riddle
func (r *CatalogRepository) HasReviewed(ctx context.Context, riddleID, userID int64) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM reviews WHERE riddle_id = ? AND user_id = ?`
	if err := r.db.QueryRowContext(ctx, query, riddleID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return count > 0, nil
}

// CreateRiddle inserts a riddle and sets its ID
func (r *CatalogRepository) CreateRiddle(ctx context.Context, riddle *models.Riddle) error {
	if riddle.CreatedAt.IsZero() {
		riddle.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO riddles (title, is_private, password, created_at) VALUES (?, ?, ?, ?)`
	id, err := r.db.ExecReturningID(ctx, query, riddle.Title, riddle.IsPrivate, riddle.Password, riddle.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create riddle: %w", err)
	}
	riddle.ID = id
	return nil
}

// CreateStep inserts a step and sets its ID
func (r *CatalogRepository) CreateStep(ctx context.Context, step *models.Step) error {
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO steps (riddle_id, order_number, code, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		step.RiddleID, step.OrderNumber, step.Code, step.Latitude, step.Longitude, step.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create step: %w", err)
	}
	step.ID = id
	return nil
}

// CreateHint inserts a hint and sets its ID
func (r *CatalogRepository) CreateHint(ctx context.Context, hint *models.Hint) error {
	query := `INSERT INTO hints (step_id, order_number, content) VALUES (?, ?, ?)`
	id, err := r.db.ExecReturningID(ctx, query, hint.StepID, hint.OrderNumber, hint.Content)
	if err != nil {
		return fmt.Errorf("failed to create hint: %w", err)
	}
	hint.ID = id
	return nil
}

// CreateReview inserts a review and sets its ID
func (r *CatalogRepository) CreateReview(ctx context.Context, review *models.Review) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reviews (riddle_id, user_id, difficulty, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		review.RiddleID, review.UserID, review.Difficulty, review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	review.ID = id
	return nil
}
