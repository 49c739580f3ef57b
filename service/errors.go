package service

import "errors"

// 错误分类：not_found / validation 不产生任何状态变更，collaborator 表示外部协作方失败。
// Handler 据此映射为 404/400/500，详见 routers/api。
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindCollaborator Kind = "collaborator"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// validationErr 保留底层哨兵错误，调用方可用 errors.Is 判别
func validationErr(err error) error {
	return &Error{Kind: KindValidation, Err: err}
}

func collaborator(msg string, err error) error {
	return &Error{Kind: KindCollaborator, Msg: msg, Err: err}
}

// KindOf 取错误分类；未分类的错误一律按协作方失败处理
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCollaborator
}
