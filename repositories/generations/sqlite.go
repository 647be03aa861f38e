package generations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"midjourney_bot/entities"
	"midjourney_bot/repositories"
)

const upsertGenerationQuery string = `
INSERT INTO generations (guid, parent_guid, message_id, hash, prompt, content, type, command, flags, uri, progress, status, error, error_category, options, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(guid) DO UPDATE SET
message_id = excluded.message_id,
hash = excluded.hash,
content = excluded.content,
flags = excluded.flags,
uri = excluded.uri,
progress = excluded.progress,
status = excluded.status,
error = excluded.error,
error_category = excluded.error_category,
options = excluded.options,
updated_at = excluded.updated_at;
`

const generationColumns string = `guid, parent_guid, message_id, hash, prompt, content, type, command, flags, uri, progress, status, error, error_category, options, created_at, updated_at`

const getGenerationByGUIDQuery = `SELECT ` + generationColumns + ` FROM generations WHERE guid = ?;`

const getGenerationByMessageIDQuery = `SELECT ` + generationColumns + ` FROM generations WHERE message_id = ? ORDER BY seq DESC LIMIT 1;`

const listGenerationsQuery = `SELECT ` + generationColumns + ` FROM (SELECT seq, ` + generationColumns +
	` FROM generations ORDER BY seq DESC LIMIT ?) ORDER BY seq;`

const deleteGenerationQuery string = `DELETE FROM generations WHERE guid = ?;`

type sqliteRepo struct {
	dbConn *sql.DB
}

type Config struct {
	DB *sql.DB
}

func NewRepository(cfg *Config) (Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	return &sqliteRepo{dbConn: cfg.DB}, nil
}

func (repo *sqliteRepo) Upsert(ctx context.Context, generation *entities.Generation) (*entities.Generation, error) {
	options := generation.Options
	if options == nil {
		options = []entities.ActionOption{}
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode generation options", goerr.V("guid", generation.GUID))
	}

	_, err = repo.dbConn.ExecContext(ctx, upsertGenerationQuery,
		generation.GUID, generation.ParentGUID, generation.ID, generation.Hash, generation.Prompt,
		generation.Content, string(generation.Type), string(generation.Command), generation.Flags,
		generation.URI, generation.Progress, string(generation.Status), generation.Error,
		generation.ErrorCategory, string(optionsJSON), generation.CreatedAt, generation.UpdatedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upsert generation", goerr.V("guid", generation.GUID))
	}

	return generation, nil
}

func (repo *sqliteRepo) GetByGUID(ctx context.Context, guid string) (*entities.Generation, error) {
	generation, err := scanGeneration(repo.dbConn.QueryRowContext(ctx, getGenerationByGUIDQuery, guid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("generation %s", guid))
		}

		return nil, goerr.Wrap(err, "failed to get generation", goerr.V("guid", guid))
	}

	return generation, nil
}

func (repo *sqliteRepo) GetByMessageID(ctx context.Context, messageID string) (*entities.Generation, error) {
	generation, err := scanGeneration(repo.dbConn.QueryRowContext(ctx, getGenerationByMessageIDQuery, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError(fmt.Sprintf("generation for message ID %s", messageID))
		}

		return nil, goerr.Wrap(err, "failed to get generation", goerr.V("message_id", messageID))
	}

	return generation, nil
}

// List returns the most recent limit generations in creation order.
func (repo *sqliteRepo) List(ctx context.Context, limit int) ([]*entities.Generation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := repo.dbConn.QueryContext(ctx, listGenerationsQuery, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list generations")
	}
	defer rows.Close()

	generations := make([]*entities.Generation, 0)

	for rows.Next() {
		generation, scanErr := scanGeneration(rows)
		if scanErr != nil {
			return nil, goerr.Wrap(scanErr, "failed to scan generation")
		}

		generations = append(generations, generation)
	}

	err = rows.Err()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to iterate generations")
	}

	return generations, nil
}

func (repo *sqliteRepo) Delete(ctx context.Context, guid string) error {
	_, err := repo.dbConn.ExecContext(ctx, deleteGenerationQuery, guid)
	if err != nil {
		return goerr.Wrap(err, "failed to delete generation", goerr.V("guid", guid))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*entities.Generation, error) {
	var (
		generation  entities.Generation
		genType     string
		command     string
		status      string
		optionsJSON string
	)

	err := row.Scan(&generation.GUID, &generation.ParentGUID, &generation.ID, &generation.Hash,
		&generation.Prompt, &generation.Content, &genType, &command, &generation.Flags,
		&generation.URI, &generation.Progress, &status, &generation.Error, &generation.ErrorCategory,
		&optionsJSON, &generation.CreatedAt, &generation.UpdatedAt)
	if err != nil {
		return nil, err
	}

	generation.Type = entities.GenerationType(genType)
	generation.Command = entities.Command(command)
	generation.Status = entities.GenerationStatus(status)

	if optionsJSON != "" {
		err = json.Unmarshal([]byte(optionsJSON), &generation.Options)
		if err != nil {
			return nil, err
		}
	}

	if len(generation.Options) == 0 {
		generation.Options = nil
	}

	return &generation, nil
}
