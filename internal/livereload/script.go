package livereload

// Script connects a page to the hub and reloads it when a module changes. Stylesheet
// changes re-import the module instead of reloading the page.
const Script = `(() => {
  if (window.__TAILS_LR__) return;
  window.__TAILS_LR__ = true;
  function connect() {
    const proto = location.protocol === "https:" ? "wss:" : "ws:";
    const ws = new WebSocket(proto + "//" + location.host + "/_tails/livereload");
    ws.onmessage = (e) => {
      try {
        const msg = JSON.parse(e.data);
        if (msg.path && msg.path.endsWith(".css")) {
          import(msg.path + ".js?v=" + Date.now());
          return;
        }
        console.log("[tails] " + msg.event + ", reloading");
        location.reload();
      } catch (_) {}
    };
    ws.onclose = () => setTimeout(connect, 2000);
  }
  connect();
})();
`
