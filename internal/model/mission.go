package model

import (
	"strings"
	"time"
)

// MissionStatus はミッションの状態を表す閉じた列挙型。
type MissionStatus string

const (
	MissionOpen    MissionStatus = "open"
	MissionPending MissionStatus = "pending"
	MissionClosed  MissionStatus = "closed"
)

// legacyMissionStatuses は過去のリモートAPIが返していた表記から現行の状態への対応表。
var legacyMissionStatuses = map[string]MissionStatus{
	"open":        MissionOpen,
	"ouvert":      MissionOpen,
	"pending":     MissionPending,
	"en attente":  MissionPending,
	"in_progress": MissionPending,
	"closed":      MissionClosed,
	"terminée":    MissionClosed,
	"terminee":    MissionClosed,
	"completed":   MissionClosed,
}

// ParseMissionStatus は文字列からミッション状態を解釈する。
// 旧表記（ouvert / en attente / terminée, in_progress / completed）も受け付ける。
func ParseMissionStatus(s string) (MissionStatus, bool) {
	st, ok := legacyMissionStatuses[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Label は画面表示用のフランス語ラベルを返す。
func (s MissionStatus) Label() string {
	switch s {
	case MissionOpen:
		return "Ouverte"
	case MissionPending:
		return "En attente"
	case MissionClosed:
		return "Terminée"
	}
	return string(s)
}

var allowedMissionTransitions = map[MissionStatus]map[MissionStatus]bool{
	MissionOpen:    {MissionPending: true, MissionClosed: true},
	MissionPending: {MissionClosed: true},
	MissionClosed:  {},
}

// CanTransitionTo は from から to への遷移が許可されているかを返す。
// 同一状態への遷移は許可しない。
func (s MissionStatus) CanTransitionTo(to MissionStatus) bool {
	next, ok := allowedMissionTransitions[s]
	if !ok {
		return false
	}
	return next[to]
}

// BudgetKind は予算の種類（時給 or 固定）を表す。
type BudgetKind string

const (
	BudgetHourly BudgetKind = "hourly"
	BudgetFixed  BudgetKind = "fixed"
)

// Budget はミッションの予算レンジを表す。
type Budget struct {
	Min  float64
	Max  float64
	Kind BudgetKind
}

// DurationKind はミッション期間の区分を表す。
type DurationKind string

const (
	DurationShort DurationKind = "short"
	DurationLong  DurationKind = "long"
)

// PosterSummary はミッション投稿者の非正規化された要約。
type PosterSummary struct {
	ID          string
	Kind        UserKind
	AvatarURL   string
	CompanyLogo string
	CompanyName string
	FirstName   string
	LastName    string
}

// Name は投稿者の表示名を返す。
func (p PosterSummary) Name() string {
	if p.Kind == KindCompany {
		if p.CompanyName != "" {
			return p.CompanyName
		}
		return "Entreprise"
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Mission は募集中の仕事（ミッション）を表す。
type Mission struct {
	ID           string
	Title        string
	Description  string
	Trade        string
	Location     string
	Budget       Budget
	StartDate    time.Time
	EndDate      time.Time
	DurationKind DurationKind
	Status       MissionStatus
	PostedBy     string
	Poster       PosterSummary
	Applications []Application
	CreatedAt    time.Time
}

// ApplicantCount は応募者数を返す。常に応募一覧の長さから算出する。
func (m *Mission) ApplicantCount() int {
	return len(m.Applications)
}

// ApplicationStatus は応募の状態を表す。
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// ParseApplicationStatus は文字列から応募状態を解釈する。
func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "en attente":
		return ApplicationPending, true
	case "accepted", "acceptée", "acceptee":
		return ApplicationAccepted, true
	case "rejected", "refusée", "refusee":
		return ApplicationRejected, true
	}
	return "", false
}

// CanTransitionTo は応募状態の遷移可否を返す。
// pending からの accepted / rejected のみ許可し、逆戻りはできない。
func (s ApplicationStatus) CanTransitionTo(to ApplicationStatus) bool {
	return s == ApplicationPending && (to == ApplicationAccepted || to == ApplicationRejected)
}

// Application はミッションへの応募を表す。
type Application struct {
	ID          string
	MissionID   string
	ApplicantID string
	Applicant   *User
	Status      ApplicationStatus
	CreatedAt   time.Time
}
