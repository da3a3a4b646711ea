// Package lifecycle models how a unit moves between workflow types. The graph is
// cyclic across types while every workflow instance stays acyclic.
package lifecycle

import (
	"fmt"
	"sort"
)

type WorkflowType string

const (
	Turnover       WorkflowType = "turnover"
	Vacancy        WorkflowType = "vacancy"
	NewResident    WorkflowType = "new_resident"
	Maintenance    WorkflowType = "maintenance"
	Renewal        WorkflowType = "renewal"
	DelinquentRent WorkflowType = "delinquent_rent"
)

type Trigger string

const (
	MakeReadyComplete Trigger = "make_ready_complete"
	MoveInComplete    Trigger = "move_in_complete"
	WorkOrderOpened   Trigger = "work_order_opened"
	WorkOrderClosed   Trigger = "work_order_closed"
	LeaseTermEnding   Trigger = "lease_term_ending"
	RenewalSigned     Trigger = "renewal_signed"
	NoticeToVacate    Trigger = "notice_to_vacate"
	RentPastDue       Trigger = "rent_past_due"
	BalanceCured      Trigger = "balance_cured"
	TenancyTerminated Trigger = "tenancy_terminated"
)

type Edge struct {
	From    WorkflowType `json:"from"`
	Trigger Trigger      `json:"trigger"`
	To      WorkflowType `json:"to"`
}

var edges = []Edge{
	{Turnover, MakeReadyComplete, Vacancy},
	{Vacancy, MoveInComplete, NewResident},
	{NewResident, WorkOrderOpened, Maintenance},
	{Maintenance, WorkOrderClosed, NewResident},
	{NewResident, LeaseTermEnding, Renewal},
	{Renewal, RenewalSigned, NewResident},
	{Renewal, NoticeToVacate, Turnover},
	{NewResident, RentPastDue, DelinquentRent},
	{DelinquentRent, BalanceCured, NewResident},
	{DelinquentRent, TenancyTerminated, Turnover},
}

// UnknownTransitionError reports a trigger that has no edge from the given type.
type UnknownTransitionError struct {
	From    WorkflowType
	Trigger Trigger
}

func (e *UnknownTransitionError) Error() string {
	return fmt.Sprintf("no %s transition from %s workflow", e.Trigger, e.From)
}

func Edges() []Edge {
	return append([]Edge(nil), edges...)
}

func Types() []WorkflowType {
	return []WorkflowType{Turnover, Vacancy, NewResident, Maintenance, Renewal, DelinquentRent}
}

// Next returns the workflow type that trigger spawns from from.
func Next(from WorkflowType, trigger Trigger) (WorkflowType, error) {
	for _, e := range edges {
		if e.From == from && e.Trigger == trigger {
			return e.To, nil
		}
	}
	return "", &UnknownTransitionError{From: from, Trigger: trigger}
}

// Triggers lists the triggers leaving from, sorted by name.
func Triggers(from WorkflowType) []Trigger {
	var out []Trigger
	for _, e := range edges {
		if e.From == from {
			out = append(out, e.Trigger)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
