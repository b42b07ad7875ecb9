package handler

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Trans 参数校验错误的翻译器，InitTrans 之前为 nil
var Trans ut.Translator

// tagParticipantPair 聊天室的参与者列表：恰好两个非空用户 ID
const tagParticipantPair = "participant_pair"

// 各语言的默认规则和本项目规则的提示
var locales = map[string]struct {
	register func(*validator.Validate, ut.Translator) error
	messages map[string]string
}{
	"zh": {
		register: zh_translations.RegisterDefaultTranslations,
		messages: map[string]string{tagParticipantPair: "{0}必须恰好包含两个用户ID"},
	},
	"en": {
		register: en_translations.RegisterDefaultTranslations,
		messages: map[string]string{tagParticipantPair: "{0} must hold exactly two user ids"},
	},
}

var registerOnce sync.Once

// RegisterValidations 注册项目自定义的校验规则，可重复调用
// 请求结构体用到了自定义 tag，必须在第一次绑定之前注册
func RegisterValidations() {
	registerOnce.Do(func() {
		if binding.Validator == nil {
			binding.Validator = &defaultValidator{validator: validator.New()}
		}
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// 报错信息使用请求中的字段名：查询参数取 form tag，请求体取 json tag
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation(tagParticipantPair, participantPair)
	})
}

func participantPair(fl validator.FieldLevel) bool {
	ids, ok := fl.Field().Interface().([]string)
	return ok && len(ids) == 2 && ids[0] != "" && ids[1] != ""
}

// InitTrans 初始化参数校验错误的翻译器
// locale 为 "zh" 或 "en"，其他值按英文处理
func InitTrans(locale string) error {
	RegisterValidations()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	conf, ok := locales[locale]
	if !ok {
		locale, conf = "en", locales["en"]
	}
	// 第一个参数是找不到语言时的 fallback
	uni := ut.New(en.New(), zh.New(), en.New())
	trans, ok := uni.GetTranslator(locale)
	if !ok {
		return fmt.Errorf("uni.GetTranslator(%s) failed", locale)
	}
	if err := conf.register(v, trans); err != nil {
		return err
	}
	for tag, msg := range conf.messages {
		err := v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			})
		if err != nil {
			return err
		}
	}
	Trans = trans
	return nil
}

// RemoveTopStruct 去除提示信息中的结构体名称，如 "GetChatRoomRequest.participantIds"
func RemoveTopStruct(fields map[string]string) map[string]string {
	res := make(map[string]string, len(fields))
	for field, msg := range fields {
		res[field[strings.Index(field, ".")+1:]] = msg
	}
	return res
}

// defaultValidator 在 binding.Validator 为空时兜底的 StructValidator
type defaultValidator struct {
	validator *validator.Validate
}

func (v *defaultValidator) ValidateStruct(obj interface{}) error {
	return v.validator.Struct(obj)
}

func (v *defaultValidator) Engine() interface{} {
	return v.validator
}
