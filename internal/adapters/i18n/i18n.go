// Package i18n translates UI message keys with golang.org/x/text catalogs.
package i18n

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var supported = []language.Tag{language.English, language.SimplifiedChinese}

var messages = map[language.Tag]map[string]string{
	language.English: {
		"toast.you_have_a_default_message":                     "You have a new message",
		"toast.the_teacher_agreed":                             "The teacher accepted your request",
		"toast.student_applied":                                "A student raised a hand",
		"toast.you_were_dismissed_by_the_teacher":              "The teacher ended your co-video",
		"toast.student_canceled":                               "The student lowered the hand",
		"toast.the_teacher_refused":                            "The teacher declined your request",
		"toast.co_video_close_success":                         "Co-video closed",
		"toast.co_video_close_failed":                          "Failed to close co-video",
		"toast.publish_rtc_success":                            "You are now on stage",
		"toast.publish_rtc_failed":                             "Failed to publish camera and microphone",
		"toast.publish_business_flow_successfully":             "Stream published",
		"toast.media_method_call_failed":                       "Media device call failed",
		"toast.successfully_left_the_business_channel":         "You left the classroom",
		"toast.failed_to_send_chat":                            "Failed to send message",
		"toast.failed_to_initiate_a_raise_of_hand_application": "Failed to raise hand:",
		"toast.failed_to_end_the_call":                         "Failed to end the call:",
		"toast.failed_to_accept_apply":                         "Failed to accept the request:",
		"toast.failed_to_reject_apply":                         "Failed to decline the request:",
		"toast.failed_to_update_hand_up_state":                 "Failed to update hands-up settings:",
		"icon.requests_to_connect_the_microphone":              " wants to join by microphone",
		"invitation.apply_success":                             "Hand raised",
		"invitation.apply_failed":                              "Failed to raise hand",
		"invitation.stop_success":                              "Hand lowered",
		"invitation.stop_failed":                               "Failed to lower hand",
		"extension.hands_up_timeout":                           "No answer from the teacher, the request expired",
	},
	language.SimplifiedChinese: {
		"toast.you_have_a_default_message":                     "你有一条新消息",
		"toast.the_teacher_agreed":                             "老师同意了你的申请",
		"toast.student_applied":                                "有学生举手",
		"toast.you_were_dismissed_by_the_teacher":              "老师结束了你的连麦",
		"toast.student_canceled":                               "学生取消了举手",
		"toast.the_teacher_refused":                            "老师拒绝了你的申请",
		"toast.co_video_close_success":                         "连麦已关闭",
		"toast.co_video_close_failed":                          "关闭连麦失败",
		"toast.publish_rtc_success":                            "上台成功",
		"toast.publish_rtc_failed":                             "发布音视频失败",
		"toast.publish_business_flow_successfully":             "发流成功",
		"toast.media_method_call_failed":                       "媒体设备调用失败",
		"toast.successfully_left_the_business_channel":         "已离开教室",
		"toast.failed_to_send_chat":                            "消息发送失败",
		"toast.failed_to_initiate_a_raise_of_hand_application": "举手失败:",
		"toast.failed_to_end_the_call":                         "结束通话失败:",
		"toast.failed_to_accept_apply":                         "同意申请失败:",
		"toast.failed_to_reject_apply":                         "拒绝申请失败:",
		"toast.failed_to_update_hand_up_state":                 "更新举手设置失败:",
		"icon.requests_to_connect_the_microphone":              " 申请连麦",
		"invitation.apply_success":                             "举手成功",
		"invitation.apply_failed":                              "举手失败",
		"invitation.stop_success":                              "已取消举手",
		"invitation.stop_failed":                               "取消举手失败",
		"extension.hands_up_timeout":                           "老师未响应，申请已过期",
	},
}

// Translator implements core.Translator for one locale. Unknown keys are
// returned unchanged.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
	known   map[string]string
}

func New(locale string) *Translator {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				log.Error().Err(err).Str("module", "adapters.i18n").Str("key", key).Msg("catalog")
			}
		}
	}
	tag := Match(locale)
	log.Info().Str("module", "adapters.i18n").Str("locale", locale).Str("tag", tag.String()).Msg("translator ready")
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b)),
		known:   messages[tag],
	}
}

// Match picks the closest supported language, English when nothing matches.
func Match(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	desired, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(desired) == 0 {
		return language.English
	}
	_, idx, conf := language.NewMatcher(supported).Match(desired...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

func (t *Translator) Tag() language.Tag { return t.tag }

func (t *Translator) T(key string) string {
	if _, ok := t.known[key]; !ok {
		return key
	}
	return t.printer.Sprintf(message.Reference(key))
}
