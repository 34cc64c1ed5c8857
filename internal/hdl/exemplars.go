package hdl

import "strings"

// Exemplars are small reference designs prepended to the first generation
// prompt so the model anchors on well-formed Verilog. Selection is keyword
// driven with the counter as the general-purpose default.

const counterExemplar = `module counter #(
    parameter WIDTH = 8
) (
    input  wire             clk,
    input  wire             rst_n,
    input  wire             en,
    output reg [WIDTH-1:0]  count
);

    always @(posedge clk or negedge rst_n) begin
        if (!rst_n)
            count <= {WIDTH{1'b0}};
        else if (en)
            count <= count + 1'b1;
    end

endmodule`

const fifoExemplar = `module sync_fifo #(
    parameter WIDTH = 8,
    parameter DEPTH = 16
) (
    input  wire             clk,
    input  wire             rst_n,
    input  wire             wr_en,
    input  wire             rd_en,
    input  wire [WIDTH-1:0] din,
    output reg  [WIDTH-1:0] dout,
    output wire             full,
    output wire             empty
);

    localparam PTR_W = $clog2(DEPTH);

    reg [WIDTH-1:0] mem [0:DEPTH-1];
    reg [PTR_W:0]   wr_ptr, rd_ptr;

    assign full  = (wr_ptr[PTR_W] != rd_ptr[PTR_W]) &&
                   (wr_ptr[PTR_W-1:0] == rd_ptr[PTR_W-1:0]);
    assign empty = (wr_ptr == rd_ptr);

    always @(posedge clk or negedge rst_n) begin
        if (!rst_n) begin
            wr_ptr <= 0;
            rd_ptr <= 0;
        end else begin
            if (wr_en && !full) begin
                mem[wr_ptr[PTR_W-1:0]] <= din;
                wr_ptr <= wr_ptr + 1'b1;
            end
            if (rd_en && !empty) begin
                dout   <= mem[rd_ptr[PTR_W-1:0]];
                rd_ptr <= rd_ptr + 1'b1;
            end
        end
    end

endmodule`

const fsmExemplar = `module traffic_fsm (
    input  wire       clk,
    input  wire       rst_n,
    input  wire       go,
    output reg  [1:0] light
);

    localparam IDLE  = 2'b00;
    localparam GREEN = 2'b01;
    localparam RED   = 2'b10;

    reg [1:0] state, next_state;

    always @(posedge clk or negedge rst_n) begin
        if (!rst_n)
            state <= IDLE;
        else
            state <= next_state;
    end

    always @(*) begin
        next_state = state;
        case (state)
            IDLE:  if (go) next_state = GREEN;
            GREEN: next_state = RED;
            RED:   next_state = IDLE;
            default: next_state = IDLE;
        endcase
    end

    always @(*) begin
        light = state;
    end

endmodule`

// ExemplarFor selects a reference design by task keywords. Tasks that do not
// mention a known design family get the counter.
func ExemplarFor(task string) string {
	lower := strings.ToLower(task)
	switch {
	case strings.Contains(lower, "fifo") || strings.Contains(lower, "queue") || strings.Contains(lower, "buffer"):
		return fifoExemplar
	case strings.Contains(lower, "fsm") || strings.Contains(lower, "state machine") || strings.Contains(lower, "statemachine"):
		return fsmExemplar
	default:
		return counterExemplar
	}
}
