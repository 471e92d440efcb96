package bridge

import "testing"

func TestBridgeDelivers(t *testing.T) {
	b := New()
	var got, all []string
	unsub := b.Subscribe(NoticeTopic("s1"), func(_ string, payload string) { got = append(got, payload) })
	b.Subscribe(Wildcard, func(topic string, _ string) { all = append(all, topic) })

	b.Notify(NoticeTopic("s1"), "working")
	b.Notify(NoticeTopic("s2"), "other session")
	if len(got) != 1 || got[0] != "working" {
		t.Fatalf("unexpected deliveries %v", got)
	}
	if len(all) != 2 || SessionFromTopic(all[1]) != "s2" {
		t.Fatalf("wildcard subscriber missed topics: %v", all)
	}

	unsub()
	b.Notify(NoticeTopic("s1"), "again")
	if len(got) != 1 {
		t.Fatalf("unsubscribed handler still called")
	}
}
