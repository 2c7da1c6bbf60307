package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"librigo/internal/shared/domainerr"
)

// MsgInvalidBody 请求体无法解析
const MsgInvalidBody = "Invalid request body"

// maxBodyBytes JSON 请求体上限
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind 解析 JSON 请求体并按 validate 标签校验
//
// 校验失败统一返回 InvalidArgument(msg)，字段细节放在 Cause 中。
// 空请求体按空对象处理。
func Bind(r *http.Request, dst any, msg string) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domainerr.Invalid(MsgInvalidBody).WithCause(err)
	}
	return Validate(dst, msg)
}

// Validate 按 validate 标签校验
func Validate(dst any, msg string) error {
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return domainerr.Invalid(msg).WithCause(err)
		}
		return domainerr.Invalid(msg)
	}
	return nil
}

// PathID 解析路径中的正整数 ID
func PathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
