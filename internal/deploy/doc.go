// Package deploy 实现部署编排核心：五阶段流水线状态机、
// 每会话一次的准入闸门，以及把终态同时回传给助手与用户的报告器。
package deploy
