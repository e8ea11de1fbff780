package handlers

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/types"
)

// paging extracts limit/offset query parameters with defaults.
func paging(c *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// queryBool parses a boolean query parameter, treating presence without a
// value ("?unread") as true.
func queryBool(c *fiber.Ctx, name string) bool {
	v := c.Query(name)
	if v == "" {
		return c.Context().QueryArgs().Has(name)
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// maxUploadBytes caps multipart uploads; templates and photos are small.
const maxUploadBytes = 10 << 20

// readFormFile loads one multipart file field into memory.
func readFormFile(c *fiber.Ctx, field string) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, types.ValidationError("file field '" + field + "' is required")
	}
	if header.Size > maxUploadBytes {
		return nil, nil, types.ValidationError("file too large")
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, types.ValidationError("unreadable upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, types.ValidationError("unreadable upload")
	}
	return data, header, nil
}
