package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harvestlink/api/internal/domain"
)

func newTicketService(t *testing.T, deps TicketServiceDeps) TicketService {
	t.Helper()
	if deps.Tickets == nil {
		deps.Tickets = &stubTicketRepo{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = staticID
	}
	svc, err := NewTicketService(deps)
	if err != nil {
		t.Fatalf("NewTicketService: %v", err)
	}
	return svc
}

func openTicket(status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{
		ID:          "tkt_1",
		SubmitterID: "usr_customer",
		IssueType:   "order_issue",
		Priority:    domain.TicketPriorityMedium,
		Status:      status,
		Subject:     "Damaged delivery",
	}
}

func TestTicketCreateRecordsCreatedEntry(t *testing.T) {
	var inserted *domain.Ticket
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			insertFn: func(_ context.Context, ticket domain.Ticket) error {
				inserted = &ticket
				return nil
			},
		},
	})

	ticket, err := svc.Create(context.Background(), CreateTicketCommand{
		Actor:     domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		IssueType: "order_issue",
		Subject:   "Damaged delivery",
		Message:   "The crate arrived crushed.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("Status = %s, want open", ticket.Status)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("Priority = %s, want medium default", ticket.Priority)
	}
	if len(ticket.History) != 1 {
		t.Fatalf("history entries = %d, want 1", len(ticket.History))
	}
	entry := ticket.History[0]
	if entry.Action != domain.HistoryActionCreated || entry.PreviousValue != "" {
		t.Fatalf("unexpected created entry %+v", entry)
	}
	if len(ticket.Comments) != 1 || ticket.Comments[0].Message != "The crate arrived crushed." {
		t.Fatalf("unexpected comments %+v", ticket.Comments)
	}
	if inserted == nil {
		t.Fatal("ticket was not inserted")
	}
}

func TestTicketStatusChangeAppendsExactlyOneEntry(t *testing.T) {
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				return openTicket(domain.TicketStatusInProgress), nil
			},
		},
	})

	ticket, err := svc.Transition(context.Background(), TicketTransitionCommand{
		Actor:      domain.Actor{ID: "stf_1", Role: domain.RoleStaff},
		TicketID:   "tkt_1",
		Target:     domain.TicketStatusResolved,
		Resolution: "Replacement shipped",
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if len(ticket.History) != 1 {
		t.Fatalf("history entries = %d, want 1", len(ticket.History))
	}
	entry := ticket.History[0]
	if entry.Action != domain.HistoryActionStatusChanged {
		t.Fatalf("Action = %s", entry.Action)
	}
	if entry.PreviousValue != string(domain.TicketStatusInProgress) || entry.NewValue != string(domain.TicketStatusResolved) {
		t.Fatalf("before/after = %q/%q", entry.PreviousValue, entry.NewValue)
	}
	if ticket.ResolvedAt == nil || ticket.Resolution != "Replacement shipped" {
		t.Fatalf("resolution bookkeeping missing: %+v", ticket)
	}
}

func TestTicketAssignOpenTicketAppendsTwoEntriesInOrder(t *testing.T) {
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				return openTicket(domain.TicketStatusOpen), nil
			},
		},
	})

	ticket, err := svc.Assign(context.Background(), AssignTicketCommand{
		Actor:      domain.Actor{ID: "stf_1", Role: domain.RoleStaff},
		TicketID:   "tkt_1",
		AssigneeID: "stf_2",
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if ticket.Status != domain.TicketStatusAssigned {
		t.Fatalf("Status = %s, want assigned", ticket.Status)
	}
	if len(ticket.History) != 2 {
		t.Fatalf("history entries = %d, want 2", len(ticket.History))
	}
	if ticket.History[0].Action != domain.HistoryActionStatusChanged {
		t.Fatalf("first entry = %s, want status_changed", ticket.History[0].Action)
	}
	if ticket.History[1].Action != domain.HistoryActionAssigned || ticket.History[1].NewValue != "stf_2" {
		t.Fatalf("second entry = %+v, want assigned to stf_2", ticket.History[1])
	}
}

func TestTicketReassignAppendsOnlyAssignedEntry(t *testing.T) {
	existing := "stf_2"
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				ticket := openTicket(domain.TicketStatusInProgress)
				ticket.AssigneeID = &existing
				return ticket, nil
			},
		},
	})

	ticket, err := svc.Assign(context.Background(), AssignTicketCommand{
		Actor:      domain.Actor{ID: "stf_1", Role: domain.RoleStaff},
		TicketID:   "tkt_1",
		AssigneeID: "stf_3",
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("Status = %s, want unchanged in_progress", ticket.Status)
	}
	if len(ticket.History) != 1 {
		t.Fatalf("history entries = %d, want 1", len(ticket.History))
	}
	entry := ticket.History[0]
	if entry.Action != domain.HistoryActionAssigned || entry.PreviousValue != "stf_2" || entry.NewValue != "stf_3" {
		t.Fatalf("unexpected assigned entry %+v", entry)
	}
}

func TestTicketSubmitterMayOnlyCloseResolved(t *testing.T) {
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				return openTicket(domain.TicketStatusInProgress), nil
			},
		},
	})

	_, err := svc.Transition(context.Background(), TicketTransitionCommand{
		Actor:    domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		TicketID: "tkt_1",
		Target:   domain.TicketStatusClosed,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	svc = newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				return openTicket(domain.TicketStatusResolved), nil
			},
		},
	})
	ticket, err := svc.Transition(context.Background(), TicketTransitionCommand{
		Actor:    domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		TicketID: "tkt_1",
		Target:   domain.TicketStatusClosed,
	})
	if err != nil {
		t.Fatalf("resolved to closed: %v", err)
	}
	if ticket.ClosedAt == nil {
		t.Fatal("ClosedAt not stamped")
	}
}

func TestTicketRateRules(t *testing.T) {
	rated := 4
	cases := []struct {
		name   string
		ticket domain.Ticket
		actor  domain.Actor
		want   error
	}{
		{
			name:   "stranger forbidden",
			ticket: openTicket(domain.TicketStatusResolved),
			actor:  domain.Actor{ID: "usr_other", Role: domain.RoleCustomer},
			want:   ErrForbidden,
		},
		{
			name:   "not resolved",
			ticket: openTicket(domain.TicketStatusInProgress),
			actor:  domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
			want:   ErrValidation,
		},
		{
			name: "already rated",
			ticket: func() domain.Ticket {
				ticket := openTicket(domain.TicketStatusResolved)
				ticket.Satisfaction = &rated
				return ticket
			}(),
			actor: domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
			want:  ErrConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTicketService(t, TicketServiceDeps{
				Tickets: &stubTicketRepo{
					findFn: func(_ context.Context, id string) (domain.Ticket, error) {
						return tc.ticket, nil
					},
				},
			})
			_, err := svc.Rate(context.Background(), RateTicketCommand{
				Actor:    tc.actor,
				TicketID: "tkt_1",
				Rating:   5,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTicketRateAppendsRatedEntry(t *testing.T) {
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				return openTicket(domain.TicketStatusResolved), nil
			},
		},
	})

	ticket, err := svc.Rate(context.Background(), RateTicketCommand{
		Actor:    domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		TicketID: "tkt_1",
		Rating:   5,
	})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if ticket.Satisfaction == nil || *ticket.Satisfaction != 5 {
		t.Fatalf("Satisfaction = %v, want 5", ticket.Satisfaction)
	}
	if len(ticket.History) != 1 || ticket.History[0].Action != domain.HistoryActionRated {
		t.Fatalf("unexpected history %+v", ticket.History)
	}
}

func TestTicketCommentSanitisedAndInternalRestricted(t *testing.T) {
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				return openTicket(domain.TicketStatusOpen), nil
			},
		},
	})

	ticket, err := svc.AddComment(context.Background(), AddTicketCommentCommand{
		Actor:    domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		TicketID: "tkt_1",
		Message:  `Hello <script>alert("x")</script>world`,
	})
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	got := ticket.Comments[len(ticket.Comments)-1].Message
	if strings.Contains(got, "<script>") {
		t.Fatalf("comment not sanitised: %q", got)
	}
	if len(ticket.History) != 1 || ticket.History[0].Action != domain.HistoryActionCommented {
		t.Fatalf("unexpected history %+v", ticket.History)
	}

	_, err = svc.AddComment(context.Background(), AddTicketCommentCommand{
		Actor:    domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer},
		TicketID: "tkt_1",
		Message:  "note",
		Internal: true,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("internal comment err = %v, want ErrForbidden", err)
	}
}

func TestTicketGetRedactsInternalComments(t *testing.T) {
	svc := newTicketService(t, TicketServiceDeps{
		Tickets: &stubTicketRepo{
			findFn: func(_ context.Context, id string) (domain.Ticket, error) {
				ticket := openTicket(domain.TicketStatusInProgress)
				ticket.Comments = []domain.TicketComment{
					{Message: "public", Author: "usr_customer"},
					{Message: "internal note", Author: "stf_1", Internal: true},
				}
				return ticket, nil
			},
		},
	})

	ticket, err := svc.Get(context.Background(), domain.Actor{ID: "usr_customer", Role: domain.RoleCustomer}, "tkt_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(ticket.Comments) != 1 || ticket.Comments[0].Message != "public" {
		t.Fatalf("internal comment leaked: %+v", ticket.Comments)
	}

	staffView, err := svc.Get(context.Background(), domain.Actor{ID: "stf_1", Role: domain.RoleStaff}, "tkt_1")
	if err != nil {
		t.Fatalf("staff Get: %v", err)
	}
	if len(staffView.Comments) != 2 {
		t.Fatalf("staff should see both comments, got %d", len(staffView.Comments))
	}
}
