package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"taskchat/internal/apperr"
	"taskchat/internal/model"
)

// Neo4jTaskRepository stores tasks as (:Task) nodes. Integer ids come from a
// (:Sequence {name: "task"}) counter node.
type Neo4jTaskRepository struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver opens a driver and checks connectivity.
func NewNeo4jDriver(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

func NewNeo4jTaskRepository(driver neo4j.DriverWithContext, database string) *Neo4jTaskRepository {
	return &Neo4jTaskRepository{driver: driver, database: database}
}

// EnsureSchema creates the lookup index used by every task query.
func (r *Neo4jTaskRepository) EnsureSchema(ctx context.Context) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "CREATE INDEX task_user_id IF NOT EXISTS FOR (t:Task) ON (t.user_id, t.id)", nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("ensure task index: %w", err)
	}
	return nil
}

func (r *Neo4jTaskRepository) Create(ctx context.Context, task *model.Task) error {
	now := time.Now().UTC()
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	id, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MERGE (s:Sequence {name: 'task'}) "+
				"ON CREATE SET s.value = 0 "+
				"SET s.value = s.value + 1 "+
				"WITH s.value AS id "+
				"CREATE (t:Task {id: id, user_id: $user_id, title: $title, description: $description, "+
				"completed: $completed, created_at: $created_at, updated_at: $created_at}) "+
				"RETURN t.id AS id",
			map[string]any{
				"user_id":     task.UserID,
				"title":       task.Title,
				"description": task.Description,
				"completed":   task.Completed,
				"created_at":  now.UnixMilli(),
			},
		)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		value, _ := record.Get("id")
		return value, nil
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	task.ID = uint(id.(int64))
	task.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	task.UpdatedAt = task.CreatedAt
	return nil
}

func (r *Neo4jTaskRepository) ListByUser(ctx context.Context, userID string, filter model.StatusFilter) ([]model.Task, error) {
	query := "MATCH (t:Task {user_id: $user_id}) "
	params := map[string]any{"user_id": userID}
	switch filter {
	case model.StatusPending:
		query += "WHERE t.completed = false "
	case model.StatusCompleted:
		query += "WHERE t.completed = true "
	}
	query += taskReturn + " ORDER BY created_at DESC, id DESC"

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var tasks []model.Task
		for res.Next(ctx) {
			tasks = append(tasks, taskFromRecord(res.Record()))
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return tasks, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, _ := result.([]model.Task)
	return tasks, nil
}

func (r *Neo4jTaskRepository) FindByID(ctx context.Context, userID string, taskID uint) (*model.Task, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (t:Task {user_id: $user_id, id: $id}) "+taskReturn,
			map[string]any{"user_id": userID, "id": int64(taskID)},
		)
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			task := taskFromRecord(res.Record())
			return &task, nil
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	task, _ := result.(*model.Task)
	if task == nil {
		return nil, apperr.NotFoundf("task %d not found", taskID)
	}
	return task, nil
}

func (r *Neo4jTaskRepository) Save(ctx context.Context, task *model.Task) error {
	matched, err := r.write(ctx,
		"MATCH (t:Task {user_id: $user_id, id: $id}) "+
			"SET t.title = $title, t.description = $description, t.completed = $completed, t.updated_at = $updated_at "+
			"RETURN count(t) AS matched",
		map[string]any{
			"user_id":     task.UserID,
			"id":          int64(task.ID),
			"title":       task.Title,
			"description": task.Description,
			"completed":   task.Completed,
			"updated_at":  time.Now().UTC().UnixMilli(),
		},
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	if matched == 0 {
		return apperr.NotFoundf("task %d not found", task.ID)
	}
	return nil
}

func (r *Neo4jTaskRepository) Delete(ctx context.Context, userID string, taskID uint) error {
	matched, err := r.write(ctx,
		"MATCH (t:Task {user_id: $user_id, id: $id}) "+
			"DETACH DELETE t "+
			"RETURN count(*) AS matched",
		map[string]any{"user_id": userID, "id": int64(taskID)},
	)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if matched == 0 {
		return apperr.NotFoundf("task %d not found", taskID)
	}
	return nil
}

const taskReturn = "RETURN t.id AS id, t.user_id AS user_id, t.title AS title, t.description AS description, " +
	"t.completed AS completed, t.created_at AS created_at, t.updated_at AS updated_at"

// write runs a statement that returns a single "matched" count.
func (r *Neo4jTaskRepository) write(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return int64(0), res.Err()
		}
		value, _ := res.Record().Get("matched")
		return value, nil
	})
	if err != nil {
		return 0, err
	}
	matched, _ := result.(int64)
	return matched, nil
}

func (r *Neo4jTaskRepository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

func taskFromRecord(record *neo4j.Record) model.Task {
	values := record.AsMap()
	task := model.Task{}
	if v, ok := values["id"].(int64); ok {
		task.ID = uint(v)
	}
	task.UserID, _ = values["user_id"].(string)
	task.Title, _ = values["title"].(string)
	task.Description, _ = values["description"].(string)
	task.Completed, _ = values["completed"].(bool)
	if v, ok := values["created_at"].(int64); ok {
		task.CreatedAt = time.UnixMilli(v).UTC()
	}
	if v, ok := values["updated_at"].(int64); ok {
		task.UpdatedAt = time.UnixMilli(v).UTC()
	}
	return task
}
