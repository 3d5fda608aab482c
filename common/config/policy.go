package config

import (
	"fmt"
	"strings"
)

// AdmissionPolicy 决定并发已满时新连接的去向。
type AdmissionPolicy uint8

const (
	// PolicyQueue 容量已满时将连接暂存于有界队列，队列满则拒绝。默认策略。
	PolicyQueue AdmissionPolicy = iota
	// PolicyReject 容量已满时立即拒绝，以丢弃负载换取资源有界。
	PolicyReject
	// PolicyBlock 容量已满时阻塞提交方，将背压传导至监听器。
	PolicyBlock
)

var policyNames = [...]string{
	PolicyQueue:  "queue",
	PolicyReject: "reject",
	PolicyBlock:  "block",
}

func (p AdmissionPolicy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePolicy 将策略名称（不区分大小写）解析为 AdmissionPolicy。
func ParsePolicy(s string) (AdmissionPolicy, error) {
	for i, name := range policyNames {
		if strings.EqualFold(s, name) {
			return AdmissionPolicy(i), nil
		}
	}
	return PolicyQueue, fmt.Errorf("未知的准入策略：%q", s)
}
