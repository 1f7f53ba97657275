package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// friendlyMessages 面向学生的错误提示，具体原因放在 detail
var friendlyMessages = map[int]string{
	http.StatusBadRequest:            "It looks like your request skipped class.",
	http.StatusUnauthorized:          "You need a valid student ID to enter this party… I mean, page.",
	http.StatusForbidden:             "Sorry, professor’s office hours are closed. No sneaking in!",
	http.StatusNotFound:              "Page not found? It’s probably taking a break. Try again later!",
	http.StatusMethodNotAllowed:      "That’s not how we do things here. Read the syllabus!",
	http.StatusNotAcceptable:         "Just like that essay without citations, your request doesn’t meet the required format.",
	http.StatusRequestTimeout:        "The server waited as long as possible, but your request missed the deadline!",
	http.StatusRequestEntityTooLarge: "That file is heavier than a semester of textbooks.",
	http.StatusUnprocessableEntity:   "It’s like trying to process a math equation without numbers. Nope, not happening.",
	http.StatusTooManyRequests:       "You have reached your daily chat limit. Please try again tomorrow.",
	http.StatusInternalServerError:   "This server just pulled an all-nighter and crashed. Try again later!",
	http.StatusBadGateway:            "Looks like the network’s having a bad day, kind of like a Wi-Fi outage during finals week.",
	http.StatusServiceUnavailable:    "The server is taking a mental health day. Come back later!",
	http.StatusGatewayTimeout:        "The server had to go to office hours and never came back. Please try again later.",
}

// FriendlyMessage 状态码对应的提示语
func FriendlyMessage(httpCode int) string {
	if msg, ok := friendlyMessages[httpCode]; ok {
		return msg
	}
	if msg := http.StatusText(httpCode); msg != "" {
		return msg
	}
	return "An error occurred"
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
	})
}

// ErrorWithDetail 带详情的错误响应
func ErrorWithDetail(c *gin.Context, httpCode int, errCode int, message, detail string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
		Detail:  detail,
	})
}

// Fail 使用提示语表的错误响应，错误码与 HTTP 状态码一致
func Fail(c *gin.Context, httpCode int, detail string) {
	ErrorWithDetail(c, httpCode, httpCode, FriendlyMessage(httpCode), detail)
}

// AbortFail 中间件中使用，终止后续处理
func AbortFail(c *gin.Context, httpCode int, detail string) {
	Fail(c, httpCode, detail)
	c.Abort()
}
