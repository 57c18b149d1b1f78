// Package main submits a small demo run and prints its live progress.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"

	"antroute/internal/model"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	req := model.RunRequest{
		Algorithm: "aco-maxmin",
		Seed:      7,
		Instance: model.InstanceIn{
			Name:     "demo-8",
			Capacity: 10,
			Vertices: []model.VertexIn{
				{ID: 0, X: 0, Y: 0, Depot: true},
				{ID: 1, X: 3, Y: 0, Demand: 4},
				{ID: 2, X: 3, Y: 4, Demand: 3},
				{ID: 3, X: 0, Y: 4, Demand: 2},
				{ID: 4, X: -3, Y: 0, Demand: 5},
				{ID: 5, X: -3, Y: -4, Demand: 3},
				{ID: 6, X: 0, Y: -5, Demand: 4},
				{ID: 7, X: 5, Y: -2, Demand: 2},
			},
		},
	}
	body, _ := json.Marshal(req)
	resp, err := http.Post(base+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("create run: status %d", resp.StatusCode)
	}
	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	for {
		var evt model.ProgressEvent
		if err := c.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			log.Fatal(err)
		}
		if evt.Type == "completed" {
			log.Printf("done status=%s cost=%.2f routes=%d elapsed=%dms", evt.Status, evt.BestCost, evt.BestRoutes, evt.ElapsedMs)
			return
		}
		log.Printf("iter=%d best=%.2f routes=%d", evt.Iteration, evt.BestCost, evt.BestRoutes)
	}
}
