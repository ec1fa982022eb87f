package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/quickhabit/habits/internal/domain"
	"github.com/quickhabit/habits/internal/service"
)

// decodeBody reads a JSON request body into v and runs the echo validator on it.
func decodeBody(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return domain.NewValidationError(typeErr.Field, "invalid type "+typeErr.Value)
		case errors.Is(err, domain.ErrInvalidInput):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", domain.ErrInvalidInput)
		default:
			return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
		}
	}
	return c.Validate(v)
}

// optional distinguishes an absent JSON field from an explicit null.
type optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// ptr returns a pointer to the value when it was sent and is not null.
func (o optional[T]) ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func pageParams(c echo.Context) domain.Page {
	number, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return service.NormalizePage(number, size)
}

func pageMeta(page domain.Page, count int) PaginationMeta {
	return PaginationMeta{
		Count:    count,
		Page:     page.Number,
		PageSize: page.Size,
		HasNext:  page.Offset()+page.Size < count,
	}
}
