package handler

import (
	"bytes"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"refman/internal/service"
)

// CountHeader carries the number of exported references.
const CountHeader = "X-Reference-Count"

// ImportReferences loads a JSON array from the request body.
//
// @Summary Import references
// @Tags transfer
// @Accept json
// @Produce json
// @Param mode query string false "merge (default) or overwrite"
// @Param references body []model.Reference true "import document"
// @Success 200 {object} service.ImportResult
// @Failure 400 {object} errorPayload
// @Router /references/import [post]
func ImportReferences(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode, err := service.ParseImportMode(c.Query("mode"))
		if err != nil {
			return serviceError(c, err)
		}
		res, err := svc.Import(c.UserContext(), bytes.NewReader(c.Body()), mode)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// ExportReferences returns the whole library as an import document.
//
// @Summary Export references
// @Tags transfer
// @Produce json
// @Success 200 {array} model.Reference
// @Router /references/export [get]
func ExportReferences(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		n, err := svc.Export(c.UserContext(), &buf)
		if err != nil {
			return serviceError(c, err)
		}
		c.Set(CountHeader, strconv.Itoa(n))
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="references.json"`)
		c.Type("json")
		return c.Send(buf.Bytes())
	}
}
