package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/auth"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/dmitrijs2005/nosuite/internal/server/realtime"
	"github.com/dmitrijs2005/nosuite/internal/server/storage"
)

// Storage command types.
const (
	CmdMkdir      = "mkdir"
	CmdLs         = "ls"
	CmdLsR        = "ls-r"
	CmdRead       = "read"
	CmdWrite      = "write"
	CmdWriteChunk = "write-chunk"
	CmdRm         = "rm"
)

// Success and Failure are the generic command responses.
type Success struct {
	Success bool `json:"success"`
}

type Failure struct {
	Error string `json:"error"`
}

type ReadResult struct {
	Content json.RawMessage `json:"content"`
}

// StorageService authenticates storage commands and runs them on the engine.
// It serves both the REST routes and the websocket sessions.
type StorageService struct {
	keys   auth.KeySource
	tokens *auth.TokenService
	engine *storage.Engine
	log    logging.Logger
}

var _ realtime.Handler = (*StorageService)(nil)

func NewStorageService(keys auth.KeySource, tokens *auth.TokenService, engine *storage.Engine, log logging.Logger) *StorageService {
	return &StorageService{
		keys:   keys,
		tokens: tokens,
		engine: engine,
		log:    log.With("module", "storage-service"),
	}
}

// Authorize validates token for app and returns the caller with its key.
// The app origin is case-folded so every spelling maps to one tree.
func (s *StorageService) Authorize(ctx context.Context, token, app, deviceID, clientID string) (storage.Caller, error) {
	app = strings.ToLower(app)
	id, err := s.tokens.Validate(ctx, token, app, deviceID)
	if err != nil {
		return storage.Caller{}, err
	}

	keyring, err := s.keys.Keyring()
	if err != nil {
		return storage.Caller{}, err
	}
	key, err := keyring.UserKey(id.PasswordHash)
	if err != nil {
		return storage.Caller{}, fmt.Errorf("derive user key: %w", err)
	}

	return storage.Caller{Email: id.Email, App: app, ClientID: clientID, Key: key}, nil
}

// Exec runs one command for an authorized caller and returns its response.
func (s *StorageService) Exec(ctx context.Context, c storage.Caller, cmd realtime.Command) (any, error) {
	switch cmd.Type {
	case CmdMkdir:
		if err := s.engine.Mkdir(ctx, c, cmd.Path); err != nil {
			return nil, err
		}
		return Success{Success: true}, nil
	case CmdLs:
		return s.engine.Ls(ctx, c, cmd.Path)
	case CmdLsR:
		return s.engine.LsRecursive(ctx, c, cmd.Path)
	case CmdRead:
		content, err := s.engine.Read(ctx, c, cmd.Path)
		if err != nil {
			return nil, err
		}
		return ReadResult{Content: models.RawContent(content)}, nil
	case CmdWrite:
		if err := s.engine.Write(ctx, c, cmd.Path, cmd.Content); err != nil {
			return nil, err
		}
		return Success{Success: true}, nil
	case CmdWriteChunk:
		if err := s.engine.WriteChunk(ctx, c, cmd.Path, []byte(cmd.Chunk), cmd.Final); err != nil {
			return nil, err
		}
		return Success{Success: true}, nil
	case CmdRm:
		if err := s.engine.Rm(ctx, c, cmd.Path); err != nil {
			return nil, err
		}
		return Success{Success: true}, nil
	default:
		return nil, fmt.Errorf("command %q: %w", cmd.Type, common.ErrBadRequest)
	}
}

// Read returns the raw decrypted bytes of a file.
func (s *StorageService) Read(ctx context.Context, c storage.Caller, path string) ([]byte, error) {
	return s.engine.Read(ctx, c, path)
}

// Register joins the session to the room of the token owner.
func (s *StorageService) Register(ctx context.Context, peer realtime.Peer, req realtime.Request) error {
	c, err := s.Authorize(ctx, req.Token, req.App, req.DeviceID, req.ClientID)
	if err != nil {
		return err
	}
	peer.Join(c.Email, c.App, c.ClientID)
	return nil
}

// Storage runs a batch. A failing command yields a Failure at its position
// and does not stop the batch.
func (s *StorageService) Storage(ctx context.Context, peer realtime.Peer, cmds []realtime.Command) []any {
	out := make([]any, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.Token == "" {
			out = append(out, Failure{Error: "No token provided"})
			continue
		}

		c, err := s.Authorize(ctx, cmd.Token, cmd.App, cmd.DeviceID, cmd.ClientID)
		if err != nil {
			out = append(out, s.failure(ctx, cmd, err))
			continue
		}
		peer.Join(c.Email, c.App, c.ClientID)

		res, err := s.Exec(ctx, c, cmd)
		if err != nil {
			out = append(out, s.failure(ctx, cmd, err))
			continue
		}
		out = append(out, res)
	}
	return out
}

func (s *StorageService) failure(ctx context.Context, cmd realtime.Command, err error) Failure {
	msg := common.PublicMessage(err)
	if msg == common.PublicMessage(common.ErrInternal) {
		s.log.Error(ctx, "storage command failed", "type", cmd.Type, "app", cmd.App, "error", err)
	}
	return Failure{Error: msg}
}
