// Package model はドメインモデルを定義する。
package model

import "time"

// Account は認証サービスが発行するアカウントを表す。
// アプリケーションは参照のみを保持し、資格情報は認証サービス側が管理する。
type Account struct {
	ID               string
	Email            string
	FullName         string // サインアップ時に渡された表示名
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
}

// Confirmed はメールアドレスの確認が完了しているかを返す。
func (a *Account) Confirmed() bool {
	return a != nil && a.EmailConfirmedAt != nil
}

// Session はアカウントのログインセッションを表す。
// IDはクライアントに渡す不透明なトークン。
type Session struct {
	ID        string
	Account   Account
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Profile はAccountに1対1で対応するアプリケーション側のユーザー情報。
// IDはAccount.IDと同一。IsAdminが特権操作の唯一の認可シグナルとなる。
type Profile struct {
	ID        string
	Email     string
	FullName  string
	IsAdmin   bool
	CreatedAt time.Time
}
