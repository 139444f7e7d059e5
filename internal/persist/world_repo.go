package persist

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/clover/server/internal/world"
)

// WorldRepo persists world objects in PostgreSQL.
type WorldRepo struct {
	db *DB
}

func NewWorldRepo(db *DB) *WorldRepo {
	return &WorldRepo{db: db}
}

// LoadWorld returns the saved objects of a world ordered by key.
func (r *WorldRepo) LoadWorld(ctx context.Context, name string) ([]world.SavedObject, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT obj_key, prefab, x, y, z FROM world_objects WHERE world = $1 ORDER BY obj_key`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []world.SavedObject
	for rows.Next() {
		var (
			o       world.SavedObject
			x, y, z float64
		)
		if err := rows.Scan(&o.Key, &o.Prefab, &x, &y, &z); err != nil {
			return nil, err
		}
		o.Position = mgl32.Vec3{float32(x), float32(y), float32(z)}
		result = append(result, o)
	}
	return result, rows.Err()
}

// SaveWorld replaces all objects of a world (delete + insert) in one tx.
func (r *WorldRepo) SaveWorld(ctx context.Context, name string, objs []world.SavedObject) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM world_objects WHERE world = $1`, name); err != nil {
		return err
	}
	for _, o := range objs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO world_objects (world, obj_key, prefab, x, y, z) VALUES ($1, $2, $3, $4, $5, $6)`,
			name, o.Key, o.Prefab, float64(o.Position.X()), float64(o.Position.Y()), float64(o.Position.Z()),
		); err != nil {
			return fmt.Errorf("insert %s: %w", o.Key, err)
		}
	}
	return tx.Commit(ctx)
}

// SQLiteWorldRepo is the SQLite flavour of WorldRepo.
type SQLiteWorldRepo struct {
	db *SQLiteDB
}

func NewSQLiteWorldRepo(db *SQLiteDB) *SQLiteWorldRepo {
	return &SQLiteWorldRepo{db: db}
}

func (r *SQLiteWorldRepo) LoadWorld(ctx context.Context, name string) ([]world.SavedObject, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT obj_key, prefab, x, y, z FROM world_objects WHERE world = ? ORDER BY obj_key`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []world.SavedObject
	for rows.Next() {
		var (
			o       world.SavedObject
			x, y, z float64
		)
		if err := rows.Scan(&o.Key, &o.Prefab, &x, &y, &z); err != nil {
			return nil, err
		}
		o.Position = mgl32.Vec3{float32(x), float32(y), float32(z)}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *SQLiteWorldRepo) SaveWorld(ctx context.Context, name string, objs []world.SavedObject) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM world_objects WHERE world = ?`, name); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO world_objects (world, obj_key, prefab, x, y, z) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, o := range objs {
		if _, err := stmt.ExecContext(ctx,
			name, o.Key, o.Prefab, float64(o.Position.X()), float64(o.Position.Y()), float64(o.Position.Z()),
		); err != nil {
			return fmt.Errorf("insert %s: %w", o.Key, err)
		}
	}
	return tx.Commit()
}

var (
	_ world.Persister = (*WorldRepo)(nil)
	_ world.Persister = (*SQLiteWorldRepo)(nil)
)
