package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

const (
	enrolledMessage     = "enrolled"
	softEnrolledMessage = "enrolled without a usable face, only the photo was stored"
)

// Enroll creates a new identity from an uploaded photo. The thumbnail is
// always stored; when no usable face is found the identity is created without
// an embedding (soft enrollment).
func (s *Service) Enroll(ctx context.Context, name string, data []byte) (result EnrollResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("enroll panic", "panic", fmt.Sprint(r))
			result = enrollFailure(constants.ReasonInternalError)
		}
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return enrollFailure(constants.ReasonMissingName)
	}

	img, ok := prepareUpload(data)
	if !ok {
		return enrollFailure(constants.ReasonBadQuality)
	}

	id, err := s.deps.Directory.NextIdentityID(ctx)
	if err != nil {
		slog.Error("allocating identity id failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}
	log := slog.With("op", "enroll", "employee_id", id)

	thumbnail, err := s.deps.Thumbnails.Save(ctx, id, img)
	if err != nil {
		log.Error("saving thumbnail failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}

	embeddingRef, generator := s.tryEmbed(ctx, log, id, img)

	identity := database.Identity{
		EmployeeID:   id,
		Name:         name,
		EmbeddingRef: embeddingRef,
		ThumbnailRef: thumbnail,
		Generator:    generator,
	}
	if err := s.deps.Directory.CreateIdentity(ctx, identity); err != nil {
		log.Error("creating identity failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}

	result = EnrollResult{
		Success:         true,
		IdentityID:      id,
		Name:            name,
		EmbeddingLinked: embeddingRef != "",
		Message:         enrolledMessage,
	}
	if !result.EmbeddingLinked {
		result.Message = softEnrolledMessage
	}
	log.Info("enrolled", "name", name, "embedding_linked", result.EmbeddingLinked)
	return result
}

// tryEmbed locates, embeds and persists a face. Failures are logged and yield
// empty references.
func (s *Service) tryEmbed(ctx context.Context, log *slog.Logger, id string, img *image.RGBA) (ref, generator string) {
	face, ok := s.locate(img)
	if !ok {
		log.Info("no usable face in enrollment photo")
		return "", ""
	}
	emb, err := s.embed(face)
	if err != nil {
		log.Warn("embedding enrollment photo failed", "error", err)
		return "", ""
	}
	ref, err = s.deps.Store.Save(ctx, id, emb)
	if err != nil {
		log.Error("saving embedding failed", "error", err)
		return "", ""
	}
	return ref, emb.Generator
}

// Reenroll replaces the face of an existing identity, or creates the identity
// under the given id. Unlike Enroll it requires a usable face.
func (s *Service) Reenroll(ctx context.Context, id, name string, data []byte) (result EnrollResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("reenroll panic", "panic", fmt.Sprint(r))
			result = enrollFailure(constants.ReasonInternalError)
		}
	}()

	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return enrollFailure(constants.ReasonInvalidRequest)
	}
	log := slog.With("op", "reenroll", "employee_id", id)

	img, ok := prepareUpload(data)
	if !ok {
		return enrollFailure(constants.ReasonBadQuality)
	}

	face, ok := s.locate(img)
	if !ok {
		return enrollFailure(constants.ReasonNoFace)
	}
	emb, err := s.embed(face)
	if err != nil {
		log.Warn("embedding failed", "error", err)
		return enrollFailure(constants.ReasonBadQuality)
	}

	existing, err := s.deps.Directory.GetIdentity(ctx, id)
	if err != nil {
		log.Error("looking up identity failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}
	if existing == nil && name == "" {
		return enrollFailure(constants.ReasonMissingName)
	}

	thumbnail, err := s.deps.Thumbnails.Save(ctx, id, img)
	if err != nil {
		log.Error("saving thumbnail failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}
	ref, err := s.deps.Store.Save(ctx, id, emb)
	if err != nil {
		log.Error("saving embedding failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}

	if existing != nil {
		err = s.deps.Directory.UpdateEnrollment(ctx, id, ref, thumbnail, emb.Generator)
		name = existing.Name
	} else {
		err = s.deps.Directory.CreateIdentity(ctx, database.Identity{
			EmployeeID:   id,
			Name:         name,
			EmbeddingRef: ref,
			ThumbnailRef: thumbnail,
			Generator:    emb.Generator,
		})
	}
	if err != nil {
		log.Error("storing enrollment failed", "error", err)
		return enrollFailure(constants.ReasonInternalError)
	}

	log.Info("re-enrolled", "created", existing == nil, "generator", emb.Generator)
	return EnrollResult{
		Success:         true,
		IdentityID:      id,
		Name:            name,
		EmbeddingLinked: true,
		Message:         enrolledMessage,
	}
}
