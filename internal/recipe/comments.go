package recipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ListComments returns a recipe's comments newest first, with author
// usernames and like counts attached.
func (s *PostgresStore) ListComments(ctx context.Context, recipeID int64) ([]*Comment, error) {
	comments := []*Comment{}
	err := s.db.SelectContext(ctx, &comments,
		"SELECT id, recipe_id, content, created_at FROM recipe_comments WHERE recipe_id = $1 ORDER BY created_at DESC, id DESC",
		recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if err := s.attachCommentDetails(ctx, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment stores a comment and its author. Returns (nil, nil) when
// the recipe does not exist.
func (s *PostgresStore) CreateComment(ctx context.Context, recipeID int64, content string, userID int64) (*Comment, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1)", recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check recipe: %w", err)
	}
	if !exists {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var c Comment
	err = tx.QueryRowxContext(ctx,
		"INSERT INTO recipe_comments (recipe_id, content) VALUES ($1, $2) RETURNING id, recipe_id, content, created_at",
		recipeID, strings.TrimSpace(content)).StructScan(&c)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO comment_authors (comment_id, user_id) VALUES ($1, $2)", c.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record comment author: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit comment: %w", err)
	}

	if err := s.db.GetContext(ctx, &c.CreatedBy, "SELECT username FROM users WHERE id = $1", userID); err != nil {
		return nil, fmt.Errorf("failed to load comment author: %w", err)
	}
	return &c, nil
}

// DeleteComment removes a comment together with its likes and author
// row. Returns false when no such comment exists on the recipe.
func (s *PostgresStore) DeleteComment(ctx context.Context, recipeID, commentID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM comment_likes WHERE comment_id = $1",
		"DELETE FROM comment_authors WHERE comment_id = $1",
	} {
		if _, err := tx.ExecContext(ctx, stmt, commentID); err != nil {
			return false, fmt.Errorf("failed to delete comment dependents: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM recipe_comments WHERE id = $1 AND recipe_id = $2", commentID, recipeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit comment delete: %w", err)
	}
	return n > 0, nil
}

// IsCommentOwner reports whether the user authored the comment.
func (s *PostgresStore) IsCommentOwner(ctx context.Context, commentID, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM comment_authors WHERE comment_id = $1 AND user_id = $2)", commentID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check comment owner: %w", err)
	}
	return exists, nil
}

// LikedCommentIDs returns the ids of the recipe's comments the user has
// liked.
func (s *PostgresStore) LikedCommentIDs(ctx context.Context, recipeID, userID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids,
		`SELECT cl.comment_id FROM comment_likes cl
		 JOIN recipe_comments rc ON rc.id = cl.comment_id
		 WHERE cl.user_id = $1 AND rc.recipe_id = $2
		 ORDER BY cl.comment_id`, userID, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked comments: %w", err)
	}
	return ids, nil
}

// AddCommentLike likes a comment. Liking twice is a no-op. Returns false
// when no such comment exists on the recipe.
func (s *PostgresStore) AddCommentLike(ctx context.Context, recipeID, commentID, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM recipe_comments WHERE id = $1 AND recipe_id = $2)", commentID, recipeID)
	if err != nil {
		return false, fmt.Errorf("failed to check comment: %w", err)
	}
	if !exists {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", commentID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add comment like: %w", err)
	}
	return true, nil
}

// RemoveCommentLike removes a like. Returns false when no such comment
// exists on the recipe; removing an absent like is a no-op.
func (s *PostgresStore) RemoveCommentLike(ctx context.Context, recipeID, commentID, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM recipe_comments WHERE id = $1 AND recipe_id = $2)", commentID, recipeID)
	if err != nil {
		return false, fmt.Errorf("failed to check comment: %w", err)
	}
	if !exists {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2", commentID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove comment like: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) attachCommentDetails(ctx context.Context, comments []*Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]int64, len(comments))
	byID := make(map[int64]*Comment, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	query, args, err := sqlx.In(
		"SELECT ca.comment_id, u.username FROM comment_authors ca JOIN users u ON u.id = ca.user_id WHERE ca.comment_id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("failed to build comment author query: %w", err)
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load comment authors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var commentID int64
		var username string
		if err := rows.Scan(&commentID, &username); err != nil {
			return fmt.Errorf("failed to scan comment author: %w", err)
		}
		byID[commentID].CreatedBy = username
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	query, args, err = sqlx.In(
		"SELECT comment_id, COUNT(user_id) FROM comment_likes WHERE comment_id IN (?) GROUP BY comment_id", ids)
	if err != nil {
		return fmt.Errorf("failed to build like query: %w", err)
	}
	likeRows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load like counts: %w", err)
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var commentID int64
		var count int
		if err := likeRows.Scan(&commentID, &count); err != nil {
			return fmt.Errorf("failed to scan like count: %w", err)
		}
		byID[commentID].LikeCount = count
	}
	if err := likeRows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}
