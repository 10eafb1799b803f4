package models

import "errors"

// 预览核心的错误分类。各层用 fmt.Errorf("%w: ...") 附加细节，
// 边界处用 errors.Is 判别
var (
	ErrMalformedArchive        = errors.New("malformed archive")
	ErrEntryNotFound           = errors.New("entry not found")
	ErrMalformedXML            = errors.New("malformed xml")
	ErrInvalidDocument         = errors.New("invalid document")
	ErrInvalidPage             = errors.New("invalid page")
	ErrStrategyTimeout         = errors.New("strategy timeout")
	ErrStrategyExecutionFailed = errors.New("strategy execution failed")
	ErrNoStrategyAvailable     = errors.New("no strategy available")
	ErrOperationTimedOut       = errors.New("operation timed out")
)
