package xg

import (
	"context"
	"fmt"

	"github.com/damianoneill/mgmt/client"
	"github.com/damianoneill/mgmt/common"
	"github.com/damianoneill/mgmt/testserver"
)

func ExampleSession_GetNodeValues() {
	ts := testserver.NewServer(nil, testserver.TestUserName, testserver.TestPassword,
		testserver.WithNodes(map[string]string{"/system/hostname": "box1"}))
	defer ts.Close()

	s, err := NewSession(context.Background(), ts.Host(),
		client.Protocol(client.HTTP),
		client.Credentials(testserver.TestUserName, testserver.TestPassword),
		client.LoggingHooks(common.NoOpLoggingHooks))
	if err != nil {
		fmt.Printf("Failed to create session %s\n", err)
		return
	}
	defer s.Close(context.Background())

	values, err := s.GetNodeValues(context.Background(), []string{"/system/hostname"}, Strip("/system"))
	if err != nil {
		fmt.Printf("Failed to query nodes %s\n", err)
		return
	}
	fmt.Println(values["/hostname"])

	// Output: box1
}

func ExampleSession_PerformSet() {
	ts := testserver.NewServer(nil, testserver.TestUserName, testserver.TestPassword)
	defer ts.Close()

	s, _ := NewSession(context.Background(), ts.Host(),
		client.Protocol(client.HTTP),
		client.Credentials(testserver.TestUserName, testserver.TestPassword),
		client.LoggingHooks(common.NoOpLoggingHooks))
	defer s.Close(context.Background())

	d := NewNodeDict()
	d.Set("/system/hostname", TypeString, "box2")
	result, err := s.PerformSet(context.Background(), d)
	if err != nil {
		fmt.Printf("Failed to set nodes %s\n", err)
		return
	}
	fmt.Println(result.Success(), len(d.SetNodes()))

	// Output: true 0
}
