package social

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (a *Adapter) logMsg(msg, tag string, fields ...zap.Field) {
	a.logger.Debug(msg, append([]zap.Field{zap.String("tag", tag)}, fields...)...)
}

func (a *Adapter) logResult(result LoginResult, tag string) {
	a.logger.Info("login result", zap.String("tag", tag), zap.Object("result", result))
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Credentials are
// reported by presence only.
func (r LoginResult) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("provider", string(r.Provider))
	enc.AddString("code", r.Code.String())
	if r.ID != "" {
		enc.AddString("id", r.ID)
	}
	if r.DisplayName != "" {
		enc.AddString("display_name", r.DisplayName)
	}
	enc.AddBool("has_auth_token", r.AuthToken != "")
	enc.AddBool("has_auth_code", r.AuthCode != "")
	enc.AddBool("has_photo", r.Photo != "")
	if r.Err != nil {
		enc.AddString("error", r.Err.Error())
	}
	return nil
}
