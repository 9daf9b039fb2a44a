package handler

import (
	"github.com/gofiber/fiber/v2"

	"refman/internal/service"
)

// ListBackups
//
// @Summary List backups
// @Tags backups
// @Produce json
// @Success 200 {array} service.BackupInfo
// @Failure 501 {object} errorPayload
// @Router /backups [get]
func ListBackups(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ListBackups(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(items)
	}
}

// CreateBackup exports the library to object storage under :key.
//
// @Summary Create a backup
// @Tags backups
// @Produce json
// @Param key path string true "backup name"
// @Success 201 {object} service.BackupInfo
// @Failure 400 {object} errorPayload
// @Failure 501 {object} errorPayload
// @Router /backups/{key} [post]
func CreateBackup(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := svc.Backup(c.UserContext(), c.Params("key"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(info)
	}
}

// RestoreBackup imports a stored backup.
//
// @Summary Restore a backup
// @Tags backups
// @Produce json
// @Param key path string true "backup name"
// @Param mode query string false "merge (default) or overwrite"
// @Success 200 {object} service.ImportResult
// @Failure 404 {object} errorPayload
// @Router /backups/{key}/restore [post]
func RestoreBackup(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode, err := service.ParseImportMode(c.Query("mode"))
		if err != nil {
			return serviceError(c, err)
		}
		res, err := svc.Restore(c.UserContext(), c.Params("key"), mode)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// DeleteBackup
//
// @Summary Delete a backup
// @Tags backups
// @Param key path string true "backup name"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /backups/{key} [delete]
func DeleteBackup(svc service.ReferenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.DeleteBackup(c.UserContext(), c.Params("key")); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
