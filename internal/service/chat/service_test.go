package chat_test

import (
	"context"
	"testing"

	model "github.com/zhouzirui/nova-companion/internal/model/chat"
	chat "github.com/zhouzirui/nova-companion/internal/service/chat"
)

func TestServiceAppendKeepsOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	first, err := svc.Append(ctx, model.Message{Role: model.RoleUser, Content: "안녕", Origin: model.OriginText})
	if err != nil {
		t.Fatalf("Append err: %v", err)
	}
	second, err := svc.Append(ctx, model.Message{Role: model.RoleAssistant, Content: "안녕하세요"})
	if err != nil {
		t.Fatalf("Append err: %v", err)
	}

	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q and %q", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}

	transcript := svc.Transcript(ctx)
	if len(transcript) != 2 {
		t.Fatalf("unexpected transcript length: %d", len(transcript))
	}
	if transcript[0].Content != "안녕" || transcript[1].Content != "안녕하세요" {
		t.Fatalf("unexpected order: %+v", transcript)
	}
}

func TestServiceRejectsEmptyContent(t *testing.T) {
	svc := chat.NewService()
	if _, err := svc.Append(context.Background(), model.Message{Role: model.RoleUser, Content: "   "}); err != chat.ErrEmptyContent {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if svc.Len() != 0 {
		t.Fatalf("expected empty log, got %d", svc.Len())
	}
}

func TestServiceTranscriptIsCopy(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	if _, err := svc.Append(ctx, model.Message{Role: model.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	transcript := svc.Transcript(ctx)
	transcript[0].Content = "changed"

	if got := svc.Transcript(ctx)[0].Content; got != "hi" {
		t.Fatalf("stored message mutated: %q", got)
	}
}

func TestServiceRecent(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if _, err := svc.Append(ctx, model.Message{Role: model.RoleUser, Content: text}); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	recent := svc.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].Content != "b" || recent[1].Content != "c" {
		t.Fatalf("unexpected recent window: %+v", recent)
	}
	if got := svc.Recent(ctx, 10); len(got) != 3 {
		t.Fatalf("expected whole log, got %d", len(got))
	}
	if got := svc.Recent(ctx, 0); got != nil {
		t.Fatalf("expected nil for n=0, got %+v", got)
	}
}
