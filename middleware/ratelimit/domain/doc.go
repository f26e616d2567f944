// Package domain tem os tipos do admission control: Policy, Request, Verdict,
// Decision e os contratos Limiter, BucketStore, StatsStore e SlotPool.
//
// Nada aqui depende de net/http ou de um store concreto.
package domain
