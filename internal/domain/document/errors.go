package document

import "errors"

// 入库相关错误
var (
	// ErrUnsupportedFormat 文件类型无法识别
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrEmptyExtraction 文本提取失败或结果为空
	ErrEmptyExtraction = errors.New("failed to extract text from file")
	// ErrDuplicate 同名文档已存在
	ErrDuplicate = errors.New("file already exists")
	// ErrNotFound 文档或记录不存在
	ErrNotFound = errors.New("file not found")
	// ErrNoContentProvided 更新时既没有文件也没有文本
	ErrNoContentProvided = errors.New("no content provided for update")
	// ErrConflictingContent 更新时同时提供了文件和文本
	ErrConflictingContent = errors.New("provide either a file or text content, not both")
)

// 索引相关错误
var (
	// ErrNothingToUpdate 更新记录时既没有新文本也没有新元数据
	ErrNothingToUpdate = errors.New("nothing to update: neither text nor metadata given")
	// ErrLengthMismatch texts、ids、metadatas 长度不一致
	ErrLengthMismatch = errors.New("texts, ids and metadatas must have equal length")
	// ErrInvalidMetadata 元数据缺少文档名
	ErrInvalidMetadata = errors.New("metadata must carry a source name and a non-negative chunk index")
	// ErrEmbeddingFailed 有文本向量化失败，整批不写入
	ErrEmbeddingFailed = errors.New("embedding failed for one or more chunks")
)
