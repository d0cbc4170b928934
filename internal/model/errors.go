// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ（利用者向け、フランス語）
	Category string            // カテゴリ: auth, validation, remote, rating, mission, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド単位の検証エラー（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeRemoteAPIFailed         = "REMOTE_API_FAILED"
	ErrCodeRemoteUnavailable       = "REMOTE_UNAVAILABLE"
	ErrCodeAlreadyRated            = "ALREADY_RATED"
	ErrCodeRatingIncomplete        = "RATING_INCOMPLETE"
	ErrCodeRatingNotOpen           = "RATING_NOT_OPEN"
	ErrCodeSelfRating              = "SELF_RATING"
	ErrCodeNotProfessional         = "NOT_PROFESSIONAL"
	ErrCodeAlreadyApplied          = "ALREADY_APPLIED"
	ErrCodeOwnMission              = "OWN_MISSION"
	ErrCodeMissionNotOpen          = "MISSION_NOT_OPEN"
	ErrCodeNotMissionOwner         = "NOT_MISSION_OWNER"
	ErrCodeMissionNotFound         = "MISSION_NOT_FOUND"
	ErrCodeApplicationNotFound     = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeInvalidFilterKey        = "INVALID_FILTER_KEY"
	ErrCodeInvalidUploadKind       = "INVALID_UPLOAD_KIND"
)

// NewUnauthorizedError は未ログイン・セッション失効エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Votre session a expiré ou vous n'êtes pas connecté.",
		Category: "auth",
		Action:   "Veuillez vous reconnecter.",
	}
}

// NewInvalidRequestError はリクエスト形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Requête invalide : %s", reason),
		Category: "validation",
		Action:   "Vérifiez les données envoyées.",
	}
}

// NewValidationError はフォーム検証エラーを生成する。
// fields にはフィールド名ごとのメッセージを格納する。
func NewValidationError(fields map[string]string) *APIError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("Certains champs sont invalides : %s", strings.Join(keys, ", ")),
		Category: "validation",
		Action:   "Corrigez les champs signalés puis réessayez.",
		Fields:   fields,
	}
}

// NewRemoteAPIError はリモートAPIが非2xxを返した場合のエラーを生成する。
// サーバーが返したメッセージがあればそれを優先する。
func NewRemoteAPIError(serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "Le serveur a renvoyé une erreur."
	}
	return &APIError{
		Code:     ErrCodeRemoteAPIFailed,
		Message:  msg,
		Category: "remote",
		Action:   "Réessayez dans quelques instants.",
	}
}

// NewRemoteUnavailableError はリモートAPIへの通信失敗エラーを生成する。
func NewRemoteUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeRemoteUnavailable,
		Message:  "Impossible de joindre le serveur.",
		Category: "remote",
		Action:   "Vérifiez votre connexion puis réessayez.",
	}
}

// NewAlreadyRatedError は同一作成者による評価済みエラーを生成する。
func NewAlreadyRatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRated,
		Message:  "Vous avez déjà noté ce prestataire.",
		Category: "rating",
		Action:   "Un seul avis est autorisé par prestataire.",
	}
}

// NewRatingIncompleteError は未採点の評価基準が残っている場合のエラーを生成する。
func NewRatingIncompleteError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeRatingIncomplete,
		Message:  fmt.Sprintf("Veuillez noter tous les critères : %s", strings.Join(missing, ", ")),
		Category: "rating",
		Action:   "Attribuez une note de 1 à 5 à chaque critère.",
	}
}

// NewRatingNotOpenError は評価ダイアログが開かれていない場合のエラーを生成する。
func NewRatingNotOpenError() *APIError {
	return &APIError{
		Code:     ErrCodeRatingNotOpen,
		Message:  "Aucune notation en cours.",
		Category: "rating",
		Action:   "Ouvrez la fenêtre de notation depuis la fiche du prestataire.",
	}
}

// NewSelfRatingError は自分自身を評価しようとした場合のエラーを生成する。
func NewSelfRatingError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfRating,
		Message:  "Vous ne pouvez pas vous noter vous-même.",
		Category: "rating",
		Action:   "Choisissez un autre prestataire.",
	}
}

// NewNotProfessionalError は個人事業者以外が応募しようとした場合のエラーを生成する。
func NewNotProfessionalError() *APIError {
	return &APIError{
		Code:     ErrCodeNotProfessional,
		Message:  "Seuls les professionnels peuvent postuler à une mission.",
		Category: "mission",
		Action:   "Connectez-vous avec un compte professionnel.",
	}
}

// NewAlreadyAppliedError は応募済みミッションへの再応募エラーを生成する。
func NewAlreadyAppliedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyApplied,
		Message:  "Vous avez déjà postulé à cette mission.",
		Category: "mission",
		Action:   "Consultez vos candidatures.",
	}
}

// NewOwnMissionError は自分が投稿したミッションに応募しようとした場合のエラーを生成する。
func NewOwnMissionError() *APIError {
	return &APIError{
		Code:     ErrCodeOwnMission,
		Message:  "Vous ne pouvez pas postuler à votre propre mission.",
		Category: "mission",
		Action:   "Choisissez une autre mission.",
	}
}

// NewMissionNotOpenError は募集中でないミッションへの応募エラーを生成する。
func NewMissionNotOpenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissionNotOpen,
		Message:  "Cette mission n'accepte plus de candidatures.",
		Category: "mission",
		Action:   "Consultez les missions ouvertes.",
	}
}

// NewNotMissionOwnerError は投稿者以外がミッションを管理しようとした場合のエラーを生成する。
func NewNotMissionOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotMissionOwner,
		Message:  "Seul l'auteur de la mission peut effectuer cette action.",
		Category: "mission",
		Action:   "Connectez-vous avec le compte qui a publié la mission.",
	}
}

// NewMissionNotFoundError はミッション未検出エラーを生成する。
func NewMissionNotFoundError(missionID string) *APIError {
	return &APIError{
		Code:     ErrCodeMissionNotFound,
		Message:  fmt.Sprintf("Mission introuvable : %s", missionID),
		Category: "mission",
		Action:   "Vérifiez l'identifiant de la mission.",
	}
}

// NewApplicationNotFoundError は応募未検出エラーを生成する。
func NewApplicationNotFoundError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("Candidature introuvable : %s", applicationID),
		Category: "mission",
		Action:   "Rechargez la liste des candidatures.",
	}
}

// NewInvalidStatusTransitionError は許可されていないステータス遷移エラーを生成する。
func NewInvalidStatusTransitionError(from, to string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatusTransition,
		Message:  fmt.Sprintf("Changement de statut impossible : %s → %s", from, to),
		Category: "mission",
		Action:   "Seules les transitions prévues sont autorisées.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Utilisateur introuvable.",
		Category: "auth",
		Action:   "Reconnectez-vous.",
	}
}

// NewInvalidFilterKeyError は存在しないフィルタキーを指定した場合のエラーを生成する。
func NewInvalidFilterKeyError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilterKey,
		Message:  fmt.Sprintf("Filtre inconnu : %s", key),
		Category: "validation",
		Action:   "Utilisez trade, department, city, available, mobile, shortMissions, longMissions ou minRating.",
	}
}

// NewInvalidUploadKindError はアップロード種別不正エラーを生成する。
func NewInvalidUploadKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUploadKind,
		Message:  fmt.Sprintf("Type de fichier inconnu : %s", kind),
		Category: "validation",
		Action:   "Utilisez avatar, banner, company-logo ou images.",
	}
}
