package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"refman/internal/model"
	"refman/internal/service"
)

// referencePatch is the PATCH body. An id key is accepted and ignored; any other
// unknown key is rejected so a misspelled field never turns into a silent no-op.
type referencePatch struct {
	model.ReferenceChanges
	ID *string `json:"id,omitempty"`
}

// ListReferences returns every reference.
//
// @Summary List references
// @Tags references
// @Produce json
// @Success 200 {array} model.Reference
// @Router /references [get]
func ListReferences(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refs, err := svc.List(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(refs)
	}
}

// SearchReferences filters by a case-insensitive substring of title, authors and notes.
//
// @Summary Search references
// @Tags references
// @Produce json
// @Param q query string false "substring to look for"
// @Success 200 {array} model.Reference
// @Router /references/search [get]
func SearchReferences(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refs, err := svc.Search(c.UserContext(), c.Query("q"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(refs)
	}
}

// GetReference
//
// @Summary Get a reference
// @Tags references
// @Produce json
// @Param id path string true "reference id"
// @Success 200 {object} model.Reference
// @Failure 404 {object} errorPayload
// @Router /references/{id} [get]
func GetReference(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		if ref == nil {
			return notFound(c, "reference")
		}
		return c.JSON(ref)
	}
}

// CreateReference stores one reference. Unknown keys in the body are kept by
// backends that can hold them.
//
// @Summary Create a reference
// @Tags references
// @Accept json
// @Produce json
// @Param reference body model.Reference true "reference"
// @Success 201 {object} model.Reference
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /references [post]
func CreateReference(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref, err := decodeReference(c.Body())
		if err != nil {
			return serviceError(c, err)
		}
		out, err := svc.Add(c.UserContext(), ref)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	}
}

// decodeReference runs a single object through the import decoder so that
// request bodies and import documents share one validation path.
func decodeReference(body []byte) (model.Reference, error) {
	src := io.MultiReader(strings.NewReader("["), bytes.NewReader(body), strings.NewReader("]"))
	refs, err := model.DecodeReferences(src)
	if err != nil {
		return model.Reference{}, err
	}
	if len(refs) != 1 {
		return model.Reference{}, fmt.Errorf("%w: expected a single reference object", model.ErrMalformedSource)
	}
	return refs[0], nil
}

// UpdateReference applies a partial update and echoes the previous values.
//
// @Summary Update a reference
// @Tags references
// @Accept json
// @Produce json
// @Param id path string true "reference id"
// @Param changes body model.ReferenceChanges true "fields to change"
// @Success 200 {object} service.UpdatedReference
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /references/{id} [patch]
func UpdateReference(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch referencePatch
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object with title, authors, year or notes")
		}

		out, err := svc.UpdateReference(c.UserContext(), c.Params("id"), patch.ReferenceChanges)
		if err != nil {
			return serviceError(c, err)
		}
		if out == nil {
			return notFound(c, "reference")
		}
		return c.JSON(out)
	}
}

// DeleteReference
//
// @Summary Delete a reference
// @Tags references
// @Param id path string true "reference id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /references/{id} [delete]
func DeleteReference(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := svc.Delete(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		if !ok {
			return notFound(c, "reference")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
