// Package session 维护 Telegram 用户与助手线程之间的映射，
// 提供内存（JSON 文件落盘）与 MySQL 两种驱动。
package session
