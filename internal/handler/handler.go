package handler

import (
	"github.com/rs/zerolog"

	"github.com/leca/image-vault/internal/config"
	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/imagestore"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	DB     database.Database
	Images *imagestore.Store
	Config *config.Config
	Logger zerolog.Logger
}
